package widgets

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/GregMSThompson/dashboard-backend/internal/models"
)

type postIt struct{}

func NewPostIt() Plugin { return postIt{} }

func (postIt) Key() string   { return "postIt" }
func (postIt) Title() string { return "Post-It" }

func (postIt) DefaultConfig() models.WidgetConfig {
	return models.WidgetConfig{
		"content":   "Nuovo Post-It",
		"font":      "Arial",
		"fontSize":  16.0,
		"color":     "#FFFF88",
		"textColor": "#000000",
	}
}

func (postIt) Render(p Props) View {
	return View{
		Title: "Post-It",
		Lines: strings.Split(str(p.Config, "content", ""), "\n"),
		Data:  map[string]any{"color": str(p.Config, "color", "#FFFF88")},
	}
}

func (postIt) Options(p Props) []Option {
	return []Option{
		{Key: "content", Label: "Content", Kind: OptionText, Value: str(p.Config, "content", "")},
		{Key: "font", Label: "Font", Kind: OptionSelect, Choices: []string{"Arial", "Courier New", "Georgia", "Times New Roman", "Verdana"}, Value: str(p.Config, "font", "Arial")},
		{Key: "fontSize", Label: "Font size", Kind: OptionNumber, Value: number(p.Config, "fontSize", 16)},
		{Key: "color", Label: "Paper color", Kind: OptionText, Value: str(p.Config, "color", "#FFFF88")},
		{Key: "textColor", Label: "Text color", Kind: OptionText, Value: str(p.Config, "textColor", "#000000")},
	}
}

// todoList keeps its items in the "todos" field of its own config so they
// are exported, imported and cleaned up with the widget.
type todoList struct{}

func NewTodoList() Plugin { return todoList{} }

func (todoList) Key() string   { return "todoList" }
func (todoList) Title() string { return "Todo List" }

func (todoList) DefaultConfig() models.WidgetConfig {
	return models.WidgetConfig{
		"title":        "Todo List",
		"showPriority": true,
		"showDueDate":  true,
		"showNotes":    false,
		"itemsPerPage": 10.0,
	}
}

func (todoList) Render(p Props) View {
	items, _ := p.Config["todos"].([]any)
	perPage := int(number(p.Config, "itemsPerPage", 10))
	if perPage < 1 {
		perPage = 1
	}

	lines := make([]string, 0, min(len(items), perPage))
	done := 0
	for i, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		mark := " "
		if boolean(item, "completed", false) {
			mark = "x"
			done++
		}
		if i >= perPage {
			continue
		}
		line := fmt.Sprintf("[%s] %s", mark, str(item, "text", ""))
		if boolean(p.Config, "showPriority", true) {
			if prio := str(item, "priority", ""); prio != "" {
				line += " (" + prio + ")"
			}
		}
		if boolean(p.Config, "showDueDate", true) {
			if due := str(item, "dueDate", ""); due != "" {
				line += " due " + due
			}
		}
		if boolean(p.Config, "showNotes", false) {
			if notes := str(item, "notes", ""); notes != "" {
				line += " - " + notes
			}
		}
		lines = append(lines, line)
	}
	return View{
		Title: str(p.Config, "title", "Todo List"),
		Lines: lines,
		Data:  map[string]any{"total": len(items), "completed": done},
	}
}

func (todoList) Options(p Props) []Option {
	return []Option{
		{Key: "title", Label: "Title", Kind: OptionText, Value: str(p.Config, "title", "Todo List")},
		{Key: "showPriority", Label: "Show priority", Kind: OptionBool, Value: boolean(p.Config, "showPriority", true)},
		{Key: "showDueDate", Label: "Show due date", Kind: OptionBool, Value: boolean(p.Config, "showDueDate", true)},
		{Key: "showNotes", Label: "Show notes", Kind: OptionBool, Value: boolean(p.Config, "showNotes", false)},
		{Key: "itemsPerPage", Label: "Items per page", Kind: OptionNumber, Value: number(p.Config, "itemsPerPage", 10)},
	}
}

type webLink struct{}

func NewWebLink() Plugin { return webLink{} }

func (webLink) Key() string   { return "webLink" }
func (webLink) Title() string { return "Web Link" }

func (webLink) DefaultConfig() models.WidgetConfig {
	return models.WidgetConfig{
		"url":               "",
		"title":             "",
		"favicon":           "",
		"description":       "",
		"customTitle":       "",
		"customDescription": "",
		"useCustom":         false,
	}
}

func (webLink) Render(p Props) View {
	link := str(p.Config, "url", "")
	title, desc := str(p.Config, "title", ""), str(p.Config, "description", "")
	if boolean(p.Config, "useCustom", false) {
		title, desc = str(p.Config, "customTitle", ""), str(p.Config, "customDescription", "")
	}
	if title == "" {
		if u, err := url.Parse(link); err == nil && u.Host != "" {
			title = u.Host
		} else {
			title = "Web Link"
		}
	}

	v := View{Title: title, Data: map[string]any{"url": link, "favicon": str(p.Config, "favicon", "")}}
	if link == "" {
		v.Lines = []string{"No link configured"}
		return v
	}
	v.Lines = []string{link}
	if desc != "" {
		v.Lines = append(v.Lines, desc)
	}
	return v
}

func (webLink) Options(p Props) []Option {
	return []Option{
		{Key: "url", Label: "URL", Kind: OptionText, Value: str(p.Config, "url", "")},
		{Key: "useCustom", Label: "Use custom title", Kind: OptionBool, Value: boolean(p.Config, "useCustom", false)},
		{Key: "customTitle", Label: "Custom title", Kind: OptionText, Value: str(p.Config, "customTitle", "")},
		{Key: "customDescription", Label: "Custom description", Kind: OptionText, Value: str(p.Config, "customDescription", "")},
	}
}
