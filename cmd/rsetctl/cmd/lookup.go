package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/andreyvit/rset"

	"github.com/spf13/cobra"
)

func (c *command) initLookupCmd() {
	cmd := &cobra.Command{
		Use:   "lookup FILE",
		Short: "Find rows by a field value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			field := c.config.GetString(optionNameField)
			s, err := c.open(cmd, args[0])
			if err != nil {
				return err
			}
			if field == "" {
				field = s.rs.IDProperty()
			}
			if field == "" {
				return errors.New("no --field given and the payload has no ID property")
			}
			value := parseValue(c.config.GetString(optionNameValue))

			positions := s.rs.IndicesByValue(field, value)
			s.logger.Debug("lookup", "field", field, "value", value, "found", len(positions))
			for _, i := range positions {
				rec, err := s.rs.At(i)
				if err != nil {
					return err
				}
				cmd.Printf("%d\t%s\n", i, rowJSON(rec))
			}
			if len(positions) == 0 {
				cmd.Println("not found")
			}
			return nil
		},
	}
	cmd.Flags().String(optionNameField, "", "field to search (default is the ID property)")
	cmd.Flags().String(optionNameValue, "", "value to look for, as JSON; bare words are strings")
	cmd.SetOut(c.root.OutOrStdout())
	c.root.AddCommand(cmd)
}

// parseValue reads s as JSON, falling back to the string itself.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

// rowJSON renders the logical values of rec. Values JSON cannot carry
// (NaN, nested records) are printed with %v.
func rowJSON(rec *rset.Record) string {
	row := make(map[string]any)
	for name, value := range rec.All() {
		if _, err := json.Marshal(value); err != nil {
			value = fmt.Sprintf("%v", value)
		}
		row[name] = value
	}
	raw, err := json.Marshal(row)
	if err != nil {
		return fmt.Sprintf("** %v", err)
	}
	return string(raw)
}
