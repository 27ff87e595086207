package htmlutil

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestCollapseWhitespace(t *testing.T) {
	cases := []struct {
		input    string
		expected string
	}{
		{input: "  热轧带肋钢筋 ", expected: "热轧带肋钢筋"},
		{input: "规格\n\t\t型号", expected: "规格 型号"},
		{input: "HRB400\u00a0\u00a0Φ12", expected: "HRB400 Φ12"},
		{input: "\u3000价格\u3000(元)", expected: "价格 (元)"},
		{input: "", expected: ""},
		{input: " \n ", expected: ""},
	}
	for _, test := range cases {
		require.Equal(t, test.expected, CollapseWhitespace(test.input), "%q", test.input)
	}
}

func TestCellTexts(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<table><tr>
		<td><b>序号</b></td>
		<td> 材料<br>名称 </td>
		<td></td>
		<td><span>价格</span><span>(元)</span></td>
	</tr></table>`))
	require.NoError(t, err)

	require.Equal(t, []string{"序号", "材料名称", "", "价格(元)"}, CellTexts(doc.Find("td")))
	require.Empty(t, CellTexts(doc.Find("th")))
}

func TestCellTextsSkipsScripts(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<table><tr><td>钢筋<script>document.write("x")</script></td><td><style>td{}</style>吨</td></tr></table>`,
	))
	require.NoError(t, err)
	require.Equal(t, []string{"钢筋", "吨"}, CellTexts(doc.Find("td")))
}

func TestCellTextsKeepsSeparatingWhitespace(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<table><tr><td>价格<br>\n(元)</td><td>材料<br>名称</td></tr></table>"))
	require.NoError(t, err)
	require.Equal(t, []string{"价格 (元)", "材料名称"}, CellTexts(doc.Find("td")))
}
