package addon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillFromCodeParsesHeader(t *testing.T) {
	code := `# -*- coding: utf-8 -*-
__Comment__ = "Makes a hole"
__Web__ = "https://example.com/hole"
__Version__ = "1.2.3"
__Author__ = "A. Person"
__Date__ = "2024-01-15"
__Icon__ = "hole.svg"
__Files__ = "a.py, b.py ,c.ui"

print("hello")
`
	m := NewMacro("Hole")
	m.FillFromCode(code)

	assert.Equal(t, "Makes a hole", m.Comment)
	assert.Equal(t, "https://example.com/hole", m.URL)
	assert.Equal(t, "1.2.3", m.Version)
	assert.Equal(t, "A. Person", m.Author)
	assert.Equal(t, "2024-01-15", m.Date)
	assert.Equal(t, "hole.svg", m.Icon)
	assert.Equal(t, []string{"a.py", "b.py", "c.ui"}, m.OtherFiles)
	assert.Equal(t, code, m.Code)
}

func TestFillFromCodeVersionFromDate(t *testing.T) {
	// the version may reference the date assignment, in either order
	cases := map[string]string{
		"before": "__Version__ = __Date__\n__Date__ = \"2023-11-02\"\n",
		"after":  "__Date__ = \"2023-11-02\"\n__Version__ = __Date__\n",
	}
	for name, code := range cases {
		t.Run(name, func(t *testing.T) {
			m := NewMacro("M")
			m.FillFromCode(code)
			assert.Equal(t, "2023-11-02", m.Version)
		})
	}
}

func TestFillFromCodeNumericVersion(t *testing.T) {
	m := NewMacro("M")
	m.FillFromCode("__Version__ = 0.4\n")
	assert.Equal(t, "0.4", m.Version)
}

func TestFillFromCodeIgnoresUnparseableAssignment(t *testing.T) {
	m := NewMacro("M")
	m.FillFromCode("__Version__ = get_version()\n")
	assert.Empty(t, m.Version)
}

func TestFillFromCodeExtractsXPM(t *testing.T) {
	code := "__xpm__ = \"\"\"\n/* XPM */\nstatic char *icon[] = {};\n\"\"\"\n"
	m := NewMacro("M")
	m.FillFromCode(code)
	assert.Equal(t, "/* XPM */\nstatic char *icon[] = {};", m.XPM)
}

func TestParseWikiPage(t *testing.T) {
	page := `<html><body><table>
<td class="ctEven left macro-description">A macro that does things.
Author: Jane Roe<br/>Macro version: 2.0<br/>Last modified: 2024-03-01<br/>
<a href="https://example.com/icons/thing.png">ToolBar Icon</a></td>
</table>
<span id="rawcodeurl"><a href="https://raw.example.com/Thing.FCMacro">raw</a></span>
</body></html>`

	m := NewMacro("Thing")
	m.ParseWikiPage(page)

	assert.Contains(t, m.Desc, "A macro that does things.")
	assert.Equal(t, "Jane Roe", m.Author)
	assert.Equal(t, "2.0", m.Version)
	assert.Equal(t, "2024-03-01", m.Date)
	assert.Equal(t, "https://example.com/icons/thing.png", m.Icon)
	assert.Equal(t, "https://raw.example.com/Thing.FCMacro", m.RawCodeURL)
}

func TestParseWikiPageWithoutIconClearsIcon(t *testing.T) {
	m := NewMacro("Thing")
	m.Icon = "stale.png"
	m.ParseWikiPage(`<td class="ctEven left macro-description">nothing here</td>`)
	assert.Empty(t, m.Icon)
}

func TestReadCodeFromWikiTakesLargestPreBlock(t *testing.T) {
	page := `<pre>short()</pre>
<pre>import thing&amp;
value = 1 &lt; 2` + " " + `# note</pre>`

	m := NewMacro("Thing")
	m.ReadCodeFromWiki(page)

	require.NotEmpty(t, m.Code)
	assert.Contains(t, m.Code, "import thing&")
	assert.Contains(t, m.Code, "1 < 2 # note")
	assert.NotContains(t, m.Code, "short()")
}

func TestReadCodeFromWikiNoPreBlocks(t *testing.T) {
	m := NewMacro("Thing")
	m.ReadCodeFromWiki("<p>no code here</p>")
	assert.Empty(t, m.Code)
}
