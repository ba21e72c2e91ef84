package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// SetSetting stores a value. Valid JSON is kept as is; anything else is
// stored as a JSON string.
func (a *App) SetSetting(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usage("set <key> <value>")
	}
	text := strings.Join(args[1:], " ")

	var value any = text
	if json.Valid([]byte(text)) {
		value = json.RawMessage(text)
	}
	if err := a.settings.Set(ctx, args[0], value); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Saved.")
	return nil
}

// GetSetting prints one setting, or all of them without a key.
func (a *App) GetSetting(ctx context.Context, args []string) error {
	switch len(args) {
	case 0:
		all, err := a.settings.All(ctx)
		if err != nil {
			return err
		}
		if len(all) == 0 {
			fmt.Fprintln(a.out, "No settings.")
		}
		for _, k := range slices.Sorted(maps.Keys(all)) {
			fmt.Fprintf(a.out, "%s = %s\n", k, all[k])
		}
		return nil
	case 1:
		var raw json.RawMessage
		if err := a.settings.Get(ctx, args[0], &raw); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%s = %s\n", args[0], raw)
		return nil
	default:
		return usage("get [key]")
	}
}
