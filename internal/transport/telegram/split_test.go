package telegram

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"housebot/internal/transport"
)

func TestSplitText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		in        string
		limit     int
		parseMode string
		want      []string
	}{
		{name: "short", in: "hello", limit: 10, want: []string{"hello"}},
		{name: "empty", in: "", limit: 10, want: []string{""}},
		{name: "newline boundary", in: "aaaa\nbbbb\ncccc", limit: 10, want: []string{"aaaa\nbbbb", "cccc"}},
		{name: "hard cut", in: "abcdefghij", limit: 4, want: []string{"abcd", "efgh", "ij"}},
		{name: "html tag kept whole", in: "abcdef<b>x</b>", limit: 8, parseMode: "HTML", want: []string{"abcdef", "<b>x</b>"}},
		{name: "runes not bytes", in: "ääääää", limit: 3, want: []string{"äää", "äää"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, splitText(tt.in, tt.limit, tt.parseMode))
		})
	}
}

func TestSplitText_LongPlan(t *testing.T) {
	t.Parallel()

	line := strings.Repeat("x", 99) + "\n"
	in := strings.Repeat(line, 100)
	parts := splitText(in, textLimit, "HTML")
	require.Len(t, parts, 3)
	for _, p := range parts {
		assert.LessOrEqual(t, utf8.RuneCountInString(p), textLimit)
	}
	assert.Equal(t, strings.TrimRight(in, "\n"), strings.Join(parts, "\n"))
}

func TestMenuCommands(t *testing.T) {
	t.Parallel()

	got := menuCommands([]transport.BotCommand{
		{Command: "dinner", Description: "Cooking plan"},
		{Command: ""},
		{Command: "help"},
		{Command: "long", Description: strings.Repeat("d", 300)},
	})
	require.Len(t, got, 3)
	assert.Equal(t, "dinner", got[0].Text)
	assert.Equal(t, "help", got[1].Description)
	assert.Len(t, got[2].Description, 256)

	assert.Equal(t, menuHash(got), menuHash(menuCommands([]transport.BotCommand{
		{Command: "dinner", Description: "Cooking plan"},
		{Command: "help"},
		{Command: "long", Description: strings.Repeat("d", 300)},
	})))
}
