package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"lnprice/internal/components/assert"
	"lnprice/internal/components/telemetry"
	"lnprice/internal/report"
	"lnprice/internal/scrapers/jgxx"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("lnprice/application/workflow")

const (
	report_workflow_connect = "workflow.connect"
	report_workflow_query   = "workflow.query"
	report_workflow_extract = "workflow.extract"
	report_workflow_export  = "workflow.export"
)

var (
	// ErrBusy is sent back when an operation is submitted while another is still running.
	ErrBusy = errors.New("another operation is still running")
	// ErrStale means the selection changed while the operation was running,
	// its result was thrown away.
	ErrStale = errors.New("selection changed during the operation")
	ErrNoQuery = errors.New("no completed query for the current selection")
	ErrQueried = errors.New("selection was already queried, select another one first")
	ErrNoData  = errors.New("no data to export")
	ErrClosed  = errors.New("controller is closed")
)

// Outcome is the result of one operation. Message is always set and is
// meant to be shown to a person as is.
type Outcome struct {
	Err     error
	Message string
	// Path is the file written by Export.
	Path string
}

// State is a snapshot of the session and the current step of the workflow.
type State struct {
	Connected bool
	Catalog   jgxx.Catalog
	Years     []int
	Months    []string

	Selection jgxx.QueryParameters
	Result    *jgxx.QueryResult
	Dataset   *jgxx.Dataset
	Report    jgxx.ExtractReport

	CanQuery   bool
	CanExtract bool
	CanExport  bool
}

// Steps bundles the pieces of the extraction pipeline a Controller drives.
type Steps struct {
	Sessions   *jgxx.SessionManager
	Catalog    jgxx.ParameterCatalog
	Planner    jgxx.QueryPlanner
	Aggregator jgxx.Aggregator
	Writer     report.Writer
}

type task struct {
	name string
	ctx  context.Context
	run  func(ctx context.Context, generation uint64) Outcome
	out  chan Outcome
}

// Controller sequences connect, query, extract and export. Operations run
// one at a time on a single worker goroutine and report back on the channel
// they return.
type Controller struct {
	steps  Steps
	region string
	tel    telemetry.API

	tasks chan task
	done  chan struct{}
	once  sync.Once

	mu         sync.Mutex
	state      State
	generation uint64
	busy       bool
}

func NewController(steps Steps, region string, tel telemetry.API) *Controller {
	assert.NotNil(steps.Sessions)
	assert.NotNil(tel)
	assert.NotEmptyStr(region)

	c := &Controller{
		steps:  steps,
		region: region,
		tel:    telemetry.NewScopedAPI("workflow", tel),
		tasks:  make(chan task),
		done:   make(chan struct{}),
	}
	go c.worker()
	return c
}

func (c *Controller) worker() {
	for {
		select {
		case <-c.done:
			return
		case t := <-c.tasks:
			select {
			case <-c.done:
				c.mu.Lock()
				c.busy = false
				c.mu.Unlock()
				t.out <- Outcome{Err: ErrClosed, Message: "❌ 已关闭"}
				return
			default:
			}

			c.mu.Lock()
			generation := c.generation
			c.mu.Unlock()

			outcome := c.runTask(t, generation)

			c.mu.Lock()
			c.busy = false
			c.mu.Unlock()
			t.out <- outcome
		}
	}
}

func (c *Controller) runTask(t task, generation uint64) (outcome Outcome) {
	ctx, span := tracer.Start(t.ctx, "workflow:"+t.name)
	defer span.End()

	defer func() {
		r := recover()
		if r != nil {
			err := fmt.Errorf("%s panicked: %v", t.name, r)
			c.tel.ReportBroken("workflow."+t.name, err)
			span.RecordError(err)
			outcome = Outcome{Err: err, Message: fmt.Sprintf("❌ 内部错误: %v", r)}
		}
	}()
	return t.run(ctx, generation)
}

// submit queues an operation, the returned channel receives exactly one Outcome.
func (c *Controller) submit(ctx context.Context, name string, run func(ctx context.Context, generation uint64) Outcome) <-chan Outcome {
	out := make(chan Outcome, 1)

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		out <- Outcome{Err: ErrBusy, Message: "⚠️ 上一个操作尚未完成，请稍候"}
		return out
	}
	c.busy = true
	c.mu.Unlock()

	select {
	case c.tasks <- task{name: name, ctx: ctx, run: run, out: out}:
	case <-c.done:
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
		out <- Outcome{Err: ErrClosed, Message: "❌ 已关闭"}
	}
	return out
}

// Close stops the worker and drops the session. Operations submitted
// afterwards fail with ErrClosed.
func (c *Controller) Close() {
	c.once.Do(func() {
		close(c.done)
		c.steps.Sessions.Disconnect()
	})
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.state
	s.Years = slices.Clone(s.Years)
	s.Months = slices.Clone(s.Months)
	if s.Result != nil {
		result := *s.Result
		s.Result = &result
	}
	if s.Dataset != nil {
		dataset := jgxx.Dataset{
			Headers: slices.Clone(s.Dataset.Headers),
			Rows:    slices.Clone(s.Dataset.Rows),
		}
		s.Dataset = &dataset
	}
	s.Report.FailedPages = slices.Clone(s.Report.FailedPages)
	return s
}

// Select changes the city/year/month selection. Any change throws away the
// query result and dataset of the previous selection, including those of an
// operation that is still running.
func (c *Controller) Select(params jgxx.QueryParameters) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if params == c.state.Selection {
		return
	}
	c.state.Selection = params
	c.invalidate()
}

// invalidate must be called with mu held.
func (c *Controller) invalidate() {
	c.generation++
	c.state.Result = nil
	c.state.Dataset = nil
	c.state.Report = jgxx.ExtractReport{}
	c.state.CanQuery = c.state.Connected
	c.state.CanExtract = false
	c.state.CanExport = false
}

// commit applies fn to the state unless the selection changed since generation.
func (c *Controller) commit(generation uint64, fn func(s *State)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return false
	}
	fn(&c.state)
	return true
}

func staleOutcome() Outcome {
	return Outcome{Err: ErrStale, Message: "⚠️ 查询参数已变更，本次结果已丢弃"}
}

func (c *Controller) Connect(ctx context.Context) <-chan Outcome {
	return c.submit(ctx, "connect", func(ctx context.Context, _ uint64) Outcome {
		session, err := c.steps.Sessions.Connect(ctx)
		if errors.Is(err, jgxx.ErrAlreadyConnected) {
			return Outcome{Err: err, Message: "⚠️ 已连接到网站"}
		}
		if err != nil {
			c.tel.ReportWarning(report_workflow_connect, err)
			return Outcome{Err: err, Message: fmt.Sprintf("❌ %v", err)}
		}

		return c.adoptSession(session)
	})
}

// adoptSession fills the state from a fresh session. A Disconnect that ran
// between the handshake and here wins, the session is not adopted.
func (c *Controller) adoptSession(session *jgxx.Session) Outcome {
	catalog := c.steps.Catalog.DiscoverCities(session.HandshakeHTML())
	years := c.steps.Catalog.YearOptions()
	months := c.steps.Catalog.MonthOptions()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.steps.Sessions.State() != jgxx.StateConnected {
		return Outcome{Err: jgxx.ErrSessionClosed, Message: "⚠️ 连接已断开"}
	}

	c.state.Connected = true
	c.state.Catalog = catalog
	c.state.Years = years
	c.state.Months = months

	selection := c.state.Selection
	if _, ok := catalog.Lookup(selection.CityID); !ok && len(catalog.Cities) > 0 {
		selection.CityID = catalog.Cities[0].ID
	}
	if selection.Year == 0 && len(years) > 0 {
		selection.Year = years[0]
	}
	if selection.Month == 0 {
		selection.Month = c.steps.Catalog.DefaultMonth()
	}
	c.state.Selection = selection
	c.invalidate()

	msg := fmt.Sprintf("✅ 网站连接成功，共 %d 个城市", len(catalog.Cities))
	if catalog.Fallback {
		msg += " (使用内置城市列表)"
	}
	return Outcome{Message: msg}
}

// Disconnect drops the session, the catalog is kept for display.
func (c *Controller) Disconnect() {
	c.steps.Sessions.Disconnect()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Connected = false
	c.invalidate()
}

func (c *Controller) Query(ctx context.Context) <-chan Outcome {
	return c.submit(ctx, "query", func(ctx context.Context, generation uint64) Outcome {
		c.mu.Lock()
		params := c.state.Selection
		connected := c.state.Connected
		canQuery := c.state.CanQuery
		catalog := c.state.Catalog
		c.mu.Unlock()

		if !connected {
			return Outcome{Err: jgxx.ErrNotConnected, Message: "❌ 请先连接网站"}
		}
		if !canQuery {
			return Outcome{Err: ErrQueried, Message: "⚠️ 当前参数已查询，请修改参数后再查询"}
		}
		err := params.Validate()
		if err != nil {
			return Outcome{Err: err, Message: fmt.Sprintf("❌ %v", err)}
		}
		if _, ok := catalog.Lookup(params.CityID); !ok {
			err := &jgxx.ParameterError{Field: "city", Reason: fmt.Sprintf("未找到选择的城市ID: %s", params.CityID)}
			return Outcome{Err: err, Message: fmt.Sprintf("❌ %v", err)}
		}

		session, err := c.steps.Sessions.Session()
		if err != nil {
			return Outcome{Err: err, Message: "❌ 请先连接网站"}
		}
		result, err := c.steps.Planner.Plan(ctx, session, params)
		if err != nil {
			c.tel.ReportWarning(report_workflow_query, err)
			return Outcome{Err: err, Message: fmt.Sprintf("❌ %v", err)}
		}

		ok := c.commit(generation, func(s *State) {
			s.Result = &result
			s.Dataset = nil
			s.Report = jgxx.ExtractReport{}
			// querying again only makes sense after the selection changes
			s.CanQuery = false
			s.CanExtract = true
			s.CanExport = false
		})
		if !ok {
			return staleOutcome()
		}
		return Outcome{Message: fmt.Sprintf("✅ 查询成功，共 %d 条记录，%d 页", result.TotalRecords, result.TotalPages)}
	})
}

// Extract fetches the pages of the last query, all of them or only the first.
func (c *Controller) Extract(ctx context.Context, allPages bool, progress jgxx.Progress) <-chan Outcome {
	return c.submit(ctx, "extract", func(ctx context.Context, generation uint64) Outcome {
		c.mu.Lock()
		params := c.state.Selection
		result := c.state.Result
		c.mu.Unlock()

		if result == nil {
			return Outcome{Err: ErrNoQuery, Message: "❌ 请先查询数据"}
		}
		session, err := c.steps.Sessions.Session()
		if err != nil {
			return Outcome{Err: err, Message: "❌ 请先连接网站"}
		}

		dataset, extractReport := c.steps.Aggregator.ExtractAll(ctx, session, params, result.TotalPages, allPages, progress)
		if progress != nil {
			progress(extractReport.PagesRequested, extractReport.PagesRequested)
		}

		ok := c.commit(generation, func(s *State) {
			s.Dataset = &dataset
			s.Report = extractReport
			s.CanExport = !dataset.Empty()
		})
		if !ok {
			return staleOutcome()
		}

		if ctx.Err() != nil {
			return Outcome{Err: ctx.Err(), Message: fmt.Sprintf("⚠️ 提取已取消，已提取 %d 条记录", extractReport.Rows)}
		}
		if dataset.Empty() {
			c.tel.ReportWarning(report_workflow_extract, "no rows extracted", params)
			return Outcome{Err: ErrNoData, Message: "⚠️ 未提取到任何数据"}
		}
		msg := fmt.Sprintf("🎉 数据提取完成，共提取 %d 条记录", extractReport.Rows)
		if len(extractReport.FailedPages) > 0 {
			msg += fmt.Sprintf("，第 %v 页提取失败", extractReport.FailedPages)
		}
		return Outcome{Message: msg}
	})
}

// Export writes the dataset to path. When path is an existing directory the
// file is named with report.DefaultFilename inside it.
func (c *Controller) Export(ctx context.Context, path string) <-chan Outcome {
	return c.submit(ctx, "export", func(ctx context.Context, _ uint64) Outcome {
		c.mu.Lock()
		dataset := c.state.Dataset
		params := c.state.Selection
		city, _ := c.state.Catalog.Lookup(params.CityID)
		c.mu.Unlock()

		if dataset == nil || dataset.Empty() {
			return Outcome{Err: ErrNoData, Message: "⚠️ 没有数据可以保存！"}
		}

		info, err := os.Stat(path)
		if path == "" || (err == nil && info.IsDir()) {
			cityName := city.DisplayName
			if cityName == "" {
				cityName = params.CityID
			}
			path = filepath.Join(path, report.DefaultFilename(c.region, cityName, params.Year, params.Month)+".xlsx")
		}

		written, err := c.steps.Writer.Write(path, *dataset)
		if err != nil {
			c.tel.ReportWarning(report_workflow_export, err, path)
			return Outcome{Err: err, Message: fmt.Sprintf("❌ 保存数据时出错：%v", err)}
		}
		return Outcome{
			Path:    written,
			Message: fmt.Sprintf("✅ 数据已保存到: %s (记录数: %d)", written, len(dataset.Rows)),
		}
	})
}
