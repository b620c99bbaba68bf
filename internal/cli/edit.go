package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kilupskalvis/vizedit/internal/core"
	"github.com/kilupskalvis/vizedit/internal/models"
	"github.com/kilupskalvis/vizedit/internal/registry"
	"github.com/kilupskalvis/vizedit/internal/ui"
)

// editFlags are the transitions and the ending requested for one session.
type editFlags struct {
	Type        string
	Name        string
	NameSet     bool
	Sets        []string
	Filters     []string
	Preview     bool
	Save        bool
	Discard     bool
	Interactive bool
}

// parseOptionValue converts a flag or prompt value for field.
func parseOptionValue(field registry.OptionField, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch field.Kind {
	case registry.KindInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not an integer", field.Key, raw)
		}
		return n, nil
	case registry.KindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not true or false", field.Key, raw)
		}
		return b, nil
	case registry.KindColumns:
		return splitList(raw), nil
	case registry.KindChoice:
		for _, c := range field.Choices {
			if c == raw {
				return raw, nil
			}
		}
		return nil, fmt.Errorf("%s: %q is not one of %s", field.Key, raw, strings.Join(field.Choices, ", "))
	default:
		return raw, nil
	}
}

// parseSet splits key=value and converts the value for the type's editor.
// Keys the type does not describe are kept as strings.
func parseSet(spec registry.EditorSpec, arg string) (string, any, error) {
	key, raw, ok := strings.Cut(arg, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", nil, fmt.Errorf("invalid option %q (want key=value)", arg)
	}
	field, ok := spec.Field(key)
	if !ok {
		return key, raw, nil
	}
	v, err := parseOptionValue(field, raw)
	return key, v, err
}

// findFilter matches a filter by column name or friendly name.
func findFilter(filters []models.FilterDescriptor, name string) (models.FilterDescriptor, bool) {
	for _, f := range filters {
		if f.Name == name || f.FriendlyName == name {
			return f, true
		}
	}
	return models.FilterDescriptor{}, false
}

// filterValues resolves the textual values against the filter's own values,
// so the selection carries the result's types. An empty list clears it.
func filterValues(f models.FilterDescriptor, raw []string) ([]any, error) {
	if !f.Multiple && len(raw) > 1 {
		return nil, fmt.Errorf("filter %s accepts a single value", f.FriendlyName)
	}
	out := make([]any, 0, len(raw))
	for _, r := range raw {
		found := false
		for _, v := range f.Values {
			if fmt.Sprint(v) == r {
				out = append(out, v)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("filter %s has no value %q", f.FriendlyName, r)
		}
	}
	return out, nil
}

// parseFilters applies col=v1,v2 arguments over the current selection.
func parseFilters(current models.FilterSet, filters []models.FilterDescriptor, args []string) (models.FilterSet, error) {
	out := make(models.FilterSet, len(current))
	for k, v := range current {
		out[k] = v
	}
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid filter %q (want column=value[,value])", arg)
		}
		f, ok := findFilter(filters, strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("result has no filter %q", name)
		}
		values, err := filterValues(f, splitList(raw))
		if err != nil {
			return nil, err
		}
		out[f.Name] = values
	}
	return out, nil
}

func splitList(raw string) []string {
	out := []string{}
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// applyEditFlags runs the flag transitions in a fixed order: type, name,
// options, filters. Options are set after the type so they survive the switch.
func applyEditFlags(ed *core.Editor, reg registry.Registry, data *models.QueryResultData, fl editFlags) error {
	if fl.Type != "" && fl.Type != ed.State().Type {
		if err := ed.ChangeType(fl.Type); err != nil {
			return err
		}
	}
	if fl.NameSet {
		if err := ed.ChangeName(fl.Name); err != nil {
			return err
		}
	}

	if len(fl.Sets) > 0 {
		d, ok := reg.Lookup(ed.State().Type)
		if !ok {
			return &core.ConfigurationError{Type: ed.State().Type}
		}
		for _, arg := range fl.Sets {
			key, v, err := parseSet(d.Editor(), arg)
			if err != nil {
				return err
			}
			if err := ed.SetOption(key, v); err != nil {
				return err
			}
		}
	}

	if len(fl.Filters) > 0 {
		var descriptors []models.FilterDescriptor
		if data != nil {
			descriptors = data.Filters
		}
		fs, err := parseFilters(ed.Filters(), descriptors, fl.Filters)
		if err != nil {
			return err
		}
		if err := ed.SetFilters(fs); err != nil {
			return err
		}
	}
	return nil
}

// runEditSession applies the flags and ends the session the way they ask:
// interactively, by saving, or by dismissing. A declined dismiss offers to
// save instead when a prompter is available.
func runEditSession(ctx context.Context, ed *core.Editor, reg registry.Registry, data *models.QueryResultData, fl editFlags, p ui.Prompter, out io.Writer) (*models.Visualization, error) {
	if err := applyEditFlags(ed, reg, data, fl); err != nil {
		return nil, err
	}

	if fl.Preview {
		showPreview(ed, out)
	}

	switch {
	case fl.Interactive:
		return runInteractive(ctx, ed, reg, data, p, out)
	case fl.Save:
		return ed.Save(ctx)
	}

	outcome, err := ed.Dismiss(ctx)
	if err != nil {
		return nil, err
	}
	if outcome == core.DismissClosed {
		fmt.Fprintln(out, "No changes saved")
		return nil, nil
	}
	errKept := fmt.Errorf("unsaved changes kept; pass --save to store them or --yes to discard")
	if p == nil || fl.Discard {
		return nil, errKept
	}
	save, err := p.Confirm("Save the visualization instead?", true)
	if err != nil && !errors.Is(err, ui.ErrInterrupted) {
		// No usable terminal.
		return nil, errKept
	}
	if !save {
		return nil, fmt.Errorf("unsaved changes kept; pass --save to store them")
	}
	return ed.Save(ctx)
}

func showPreview(ed *core.Editor, out io.Writer) {
	if err := ed.Preview(out); err != nil {
		fmt.Fprintf(out, "Preview unavailable: %v\n", err)
	}
}

// Interactive menu entries.
const (
	actionType    = "Change type"
	actionRename  = "Rename"
	actionOption  = "Set option"
	actionFilter  = "Filter rows"
	actionPreview = "Preview"
	actionSave    = "Save"
	actionDiscard = "Discard"
)

func runInteractive(ctx context.Context, ed *core.Editor, reg registry.Registry, data *models.QueryResultData, p ui.Prompter, out io.Writer) (*models.Visualization, error) {
	if p == nil {
		return nil, fmt.Errorf("interactive editing needs a terminal")
	}

	for {
		state := ed.State()
		actions := []string{}
		if ed.CanChangeType() {
			actions = append(actions, actionType)
		}
		actions = append(actions, actionRename, actionOption)
		if data != nil && len(data.Filters) > 0 {
			actions = append(actions, actionFilter)
		}
		actions = append(actions, actionPreview, actionSave, actionDiscard)

		title := fmt.Sprintf("%s (%s)", state.Name, state.Type)
		if ed.IsDirty() {
			title += " *"
		}
		action, err := p.Select(title, actions, "")
		if errors.Is(err, ui.ErrInterrupted) {
			action = actionDiscard
		} else if err != nil {
			return nil, err
		}

		switch action {
		case actionType:
			err = promptType(ed, reg, p)
		case actionRename:
			var name string
			if name, err = p.Input("Name", state.Name); err == nil {
				err = ed.ChangeName(name)
			}
		case actionOption:
			err = promptOption(ed, reg, data, p)
		case actionFilter:
			err = promptFilter(ed, data, p)
		case actionPreview:
			showPreview(ed, out)
		case actionSave:
			saved, saveErr := ed.Save(ctx)
			if saveErr == nil {
				return saved, nil
			}
			err = saveErr
		case actionDiscard:
			outcome, dismissErr := ed.Dismiss(ctx)
			if dismissErr != nil {
				return nil, dismissErr
			}
			if outcome == core.DismissClosed {
				return nil, nil
			}
		}

		if errors.Is(err, core.ErrSessionClosed) {
			return nil, err
		}
		if err != nil && !errors.Is(err, ui.ErrInterrupted) {
			fmt.Fprintf(out, "%v\n", err)
		}
	}
}

func promptType(ed *core.Editor, reg registry.Registry, p ui.Prompter) error {
	var types []string
	for _, d := range reg.List() {
		if !d.Deprecated() {
			types = append(types, d.Type())
		}
	}
	typ, err := p.Select("Type", types, ed.State().Type)
	if err != nil {
		return err
	}
	if typ == ed.State().Type {
		return nil
	}
	return ed.ChangeType(typ)
}

func promptOption(ed *core.Editor, reg registry.Registry, data *models.QueryResultData, p ui.Prompter) error {
	state := ed.State()
	d, ok := reg.Lookup(state.Type)
	if !ok {
		return &core.ConfigurationError{Type: state.Type}
	}
	spec := d.Editor()
	if len(spec.Fields) == 0 {
		return fmt.Errorf("%s has no options", state.Type)
	}

	labels := make([]string, len(spec.Fields))
	for i, f := range spec.Fields {
		labels[i] = fmt.Sprintf("%s = %v", f.Key, state.Options[f.Key])
	}
	picked, err := p.Select("Option", labels, "")
	if err != nil {
		return err
	}
	var field registry.OptionField
	for i, l := range labels {
		if l == picked {
			field = spec.Fields[i]
		}
	}

	current := state.Options[field.Key]
	var raw string
	switch field.Kind {
	case registry.KindBool:
		cur, _ := current.(bool)
		b, err := p.Confirm(field.Help, cur)
		if err != nil {
			return err
		}
		raw = strconv.FormatBool(b)
	case registry.KindChoice:
		raw, err = p.Select(field.Help, field.Choices, fmt.Sprint(current))
	case registry.KindColumn:
		raw, err = p.Select(field.Help, data.ColumnNames(), fmt.Sprint(current))
	case registry.KindColumns:
		def := ""
		if cols, ok := current.([]string); ok {
			def = strings.Join(cols, ",")
		}
		raw, err = p.Input(field.Help+" (comma separated)", def)
	default:
		def := ""
		if current != nil {
			def = fmt.Sprint(current)
		}
		raw, err = p.Input(field.Help, def)
	}
	if err != nil {
		return err
	}

	v, err := parseOptionValue(field, raw)
	if err != nil {
		return err
	}
	return ed.SetOption(field.Key, v)
}

func promptFilter(ed *core.Editor, data *models.QueryResultData, p ui.Prompter) error {
	names := make([]string, len(data.Filters))
	for i, f := range data.Filters {
		names[i] = f.FriendlyName
	}
	picked, err := p.Select("Filter", names, "")
	if err != nil {
		return err
	}
	f, _ := findFilter(data.Filters, picked)

	values := make([]string, len(f.Values))
	for i, v := range f.Values {
		values[i] = fmt.Sprint(v)
	}
	var raw []string
	if f.Multiple {
		input, err := p.Input(fmt.Sprintf("Values of %s (comma separated, empty for all: %s)",
			f.FriendlyName, strings.Join(values, ", ")), "")
		if err != nil {
			return err
		}
		raw = splitList(input)
	} else {
		v, err := p.Select(f.FriendlyName, values, "")
		if err != nil {
			return err
		}
		raw = []string{v}
	}

	selected, err := filterValues(f, raw)
	if err != nil {
		return err
	}
	fs := ed.Filters()
	fs[f.Name] = selected
	return ed.SetFilters(fs)
}
