package ui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/ssh-vom/archive-scout/internal/history"
	"github.com/ssh-vom/archive-scout/internal/providers/archive"
)

const (
	fieldKeyword = iota
	fieldAuthor
	fieldLanguage
	fieldStartYear
	fieldEndYear
	fieldFileTypes
	fieldCount
)

type queryForm struct {
	inputs []textinput.Model
	focus  int
}

func newQueryForm(fileTypes []string) queryForm {
	inputs := make([]textinput.Model, fieldCount)

	inputs[fieldKeyword] = newFormInput("Keyword:    ", "e.g. chess", 200)
	inputs[fieldAuthor] = newFormInput("Author:     ", "e.g. Capablanca", 200)
	inputs[fieldLanguage] = newFormInput("Language:   ", "e.g. english", 60)
	inputs[fieldStartYear] = newFormInput("Start year: ", "e.g. 1900", 4)
	inputs[fieldEndYear] = newFormInput("End year:   ", "e.g. 1950", 4)
	inputs[fieldFileTypes] = newFormInput("File types: ", strings.Join(archive.CommonFileTypes, ","), 120)
	inputs[fieldFileTypes].SetValue(strings.Join(fileTypes, ","))

	return applyFormFocus(queryForm{inputs: inputs, focus: 0})
}

func newFormInput(prompt, placeholder string, limit int) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.Placeholder = placeholder
	input.CharLimit = limit
	return input
}

// fill loads a saved search into the form.
func (form queryForm) fill(search history.Search) queryForm {
	form.inputs[fieldKeyword].SetValue(search.Query.Keyword)
	form.inputs[fieldAuthor].SetValue(search.Query.Author)
	form.inputs[fieldLanguage].SetValue(search.Query.Language)
	form.inputs[fieldStartYear].SetValue(search.Query.StartYear)
	form.inputs[fieldEndYear].SetValue(search.Query.EndYear)
	if len(search.FileTypes) > 0 {
		form.inputs[fieldFileTypes].SetValue(strings.Join(search.FileTypes, ","))
	}
	return form
}

func (form queryForm) query() (archive.Query, []string, error) {
	query := archive.Query{
		Keyword:   form.inputs[fieldKeyword].Value(),
		Author:    form.inputs[fieldAuthor].Value(),
		Language:  form.inputs[fieldLanguage].Value(),
		StartYear: form.inputs[fieldStartYear].Value(),
		EndYear:   form.inputs[fieldEndYear].Value(),
	}.Trimmed()

	if query.IsEmpty() {
		return query, nil, errors.New("enter at least one search field")
	}

	fileTypes := archive.ParseFileTypes(form.inputs[fieldFileTypes].Value())
	if len(fileTypes) == 0 {
		return query, nil, errors.New("enter at least one file type")
	}

	return query, fileTypes, nil
}

func updateFormFocus(direction string, focus, total int) int {
	if direction == "tab" || direction == "down" {
		focus++
	} else {
		focus--
	}

	if focus >= total {
		focus = 0
	} else if focus < 0 {
		focus = total - 1
	}

	return focus
}

func applyFormFocus(form queryForm) queryForm {
	for i := range form.inputs {
		if i == form.focus {
			form.inputs[i].Focus()
			form.inputs[i].PromptStyle = focusedStyle
			form.inputs[i].TextStyle = focusedStyle
		} else {
			form.inputs[i].Blur()
			form.inputs[i].PromptStyle = blurStyle
			form.inputs[i].TextStyle = blurStyle
		}
	}
	return form
}
