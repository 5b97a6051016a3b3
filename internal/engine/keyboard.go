package engine

import (
	"fmt"

	"github.com/mbaylis/curator/internal/transport"
)

// Grid sets the option-button layout of an item keyboard. A page holds
// Rows*Cols option buttons; paging controls appear only when the option
// count exceeds one page.
type Grid struct {
	Rows int
	Cols int
}

// DefaultGrid is used when the configuration leaves the layout unset.
var DefaultGrid = Grid{Rows: 3, Cols: 2}

// perPage returns the number of option buttons one page holds.
func (g Grid) perPage() int {
	if g.Rows < 1 || g.Cols < 1 {
		return DefaultGrid.Rows * DefaultGrid.Cols
	}
	return g.Rows * g.Cols
}

// pages returns how many pages the given option count occupies.
func (g Grid) pages(options int) int {
	per := g.perPage()
	pages := (options + per - 1) / per
	if pages < 1 {
		pages = 1
	}
	return pages
}

// Callback payload constructors. The transport limits payload length,
// which is why these carry small integers instead of item ids.

func labelData(sessionID, token, optionID int) string {
	return fmt.Sprintf("label:%d:%d:%d", sessionID, token, optionID)
}

func pageData(sessionID, token int, direction string) string {
	return fmt.Sprintf("page:%d:%d:%s", sessionID, token, direction)
}

func doneData(sessionID, token int) string {
	return fmt.Sprintf("done:%d:%d", sessionID, token)
}

func endSessionData(sessionID int) string {
	return fmt.Sprintf("session_end:%d", sessionID)
}

// itemKeyboard lays out one item's keyboard: the current page of option
// buttons in the grid, paging controls when a previous/next page exists,
// a done control for multi-select sessions, and the end-session control
// last.
func itemKeyboard(grid Grid, sessionID, token, page int, options []string, multiSelect bool) transport.Keyboard {
	per := grid.perPage()
	pages := grid.pages(len(options))
	if page > pages-1 {
		page = pages - 1
	}

	start := page * per
	end := start + per
	if end > len(options) {
		end = len(options)
	}

	var kb transport.Keyboard
	row := make([]transport.Button, 0, grid.Cols)
	for i := start; i < end; i++ {
		row = append(row, transport.Button{
			Label: options[i],
			Data:  labelData(sessionID, token, i),
		})
		if len(row) == grid.Cols {
			kb = kb.Row(row...)
			row = nil
		}
	}
	if len(row) > 0 {
		kb = kb.Row(row...)
	}

	var nav []transport.Button
	if page > 0 {
		nav = append(nav, transport.Button{
			Label: "<",
			Data:  pageData(sessionID, token, "prev"),
		})
	}
	if page < pages-1 {
		nav = append(nav, transport.Button{
			Label: ">",
			Data:  pageData(sessionID, token, "next"),
		})
	}
	if len(nav) > 0 {
		kb = kb.Row(nav...)
	}

	if multiSelect {
		kb = kb.Row(transport.Button{
			Label: "Done",
			Data:  doneData(sessionID, token),
		})
	}
	return kb.Row(transport.Button{
		Label: "End session",
		Data:  endSessionData(sessionID),
	})
}
