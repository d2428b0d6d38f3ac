package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/andreyvit/rset"
	"github.com/spf13/cobra"
)

func (c *command) initEnvelopeCmd() {
	cmd := &cobra.Command{
		Use:   "envelope FILE",
		Short: "Print the serialization envelope of a payload",
		Long: `Loads FILE as a record set and prints its serialized envelope.
JSON output is indented; msgpack output is written as raw bytes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			method, err := rset.ParseEncodingMethod(c.config.GetString(optionNameEncoding))
			if err != nil {
				return err
			}
			s, err := c.open(cmd, args[0])
			if err != nil {
				return err
			}
			data, err := rset.NewSerializer(s.reg).Encode(method, s.rs)
			if err != nil {
				return fmt.Errorf("serialize: %w", err)
			}
			s.logger.Debug("envelope", "encoding", method, "bytes", len(data))

			if method == rset.JSON {
				var buf bytes.Buffer
				if err := json.Indent(&buf, data, "", "  "); err != nil {
					return err
				}
				buf.WriteByte('\n')
				data = buf.Bytes()
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().String(optionNameEncoding, "json", "output encoding: json or msgpack")
	cmd.SetOut(c.root.OutOrStdout())
	c.root.AddCommand(cmd)
}
