package cmd

import (
	"fmt"
	"sort"

	"github.com/andreyvit/rset"
	"github.com/spf13/cobra"
)

func (c *command) initInspectCmd() {
	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Print the format, size and metadata of a payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open(cmd, args[0])
			if err != nil {
				return err
			}
			flags := rset.DumpHeader | rset.DumpFormat | rset.DumpStats
			if c.config.GetBool(optionNameRows) {
				flags |= rset.DumpRows
			}
			cmd.Print(s.rs.Dump(flags))

			meta := s.rs.MetaData()
			keys := make([]string, 0, len(meta))
			for k := range meta {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				cmd.Printf("meta.%s = %s\n", k, describe(meta[k]))
			}
			return nil
		},
	}
	cmd.Flags().Bool(optionNameRows, false, "also print every row")
	cmd.SetOut(c.root.OutOrStdout())
	c.root.AddCommand(cmd)
}

func describe(v any) string {
	switch v := v.(type) {
	case *rset.RecordSet:
		return fmt.Sprintf("record set (%d rows, fields %v)", v.Count(), v.Format().Names())
	case *rset.Record:
		return "record " + rowJSON(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
