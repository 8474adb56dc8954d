package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNumberedList_Basic(t *testing.T) {
	text := "1. A lone wolf under a neon moon\n2. A clockwork garden in eternal autumn\n3. A forgotten library at the edge of the sea"
	items := NumberedList(text)
	assert.Equal(t, []string{
		"A lone wolf under a neon moon",
		"A clockwork garden in eternal autumn",
		"A forgotten library at the edge of the sea",
	}, items)
}

func TestNumberedList_ParenStyle(t *testing.T) {
	items := NumberedList("1) first idea\n2) second idea")
	assert.Equal(t, []string{"first idea", "second idea"}, items)
}

func TestNumberedList_FoldsContinuationLines(t *testing.T) {
	text := "1. A dragon perched\non a rusted water tower\n2. A quiet diner at 3am"
	items := NumberedList(text)
	assert.Equal(t, []string{
		"A dragon perched on a rusted water tower",
		"A quiet diner at 3am",
	}, items)
}

func TestNumberedList_IgnoresPreamble(t *testing.T) {
	text := "Sure, here are some ideas:\n\n1. First\n2. Second"
	items := NumberedList(text)
	assert.Equal(t, []string{"First", "Second"}, items)
}

func TestNumberedList_Empty(t *testing.T) {
	assert.Empty(t, NumberedList(""))
	assert.Empty(t, NumberedList("just a sentence with no numbers"))
}

func TestNumberedList_RenderRoundTrip(t *testing.T) {
	items := []string{"a red bicycle", "a stormy lighthouse", "an empty arcade"}
	rendered := RenderNumberedList(items)
	assert.Equal(t, items, NumberedList(rendered))
}

func TestRenderNumberedList_Empty(t *testing.T) {
	assert.Equal(t, "", RenderNumberedList(nil))
}
