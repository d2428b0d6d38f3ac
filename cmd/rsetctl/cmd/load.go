package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/andreyvit/rset"
	"github.com/spf13/cobra"
)

// session is what every payload command needs: a logger, a registry and
// the loaded record set.
type session struct {
	logger *slog.Logger
	reg    *rset.Registry
	rs     *rset.RecordSet
}

func (c *command) open(cmd *cobra.Command, path string) (*session, error) {
	logger, err := newLogger(cmd, strings.ToLower(c.config.GetString(optionNameVerbosity)))
	if err != nil {
		return nil, fmt.Errorf("new logger: %w", err)
	}
	slog.SetDefault(logger)

	method, err := inputEncoding(c.config.GetString(optionNameInputFormat), path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tree, err := method.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	reg := rset.NewRegistry()
	adapterName := c.config.GetString(optionNameAdapter)
	if adapterName == "" || adapterName == "auto" {
		adapterName = detectAdapter(tree)
	}
	adapter, err := reg.Adapter(adapterName)
	if err != nil {
		return nil, err
	}

	opts := rset.RecordSetOptions{
		Adapter:    adapter,
		RawData:    tree,
		IDProperty: c.config.GetString(optionNameIDProperty),
		Registry:   reg,
		Logger:     logger,
	}
	if declPath := c.config.GetString(optionNameFormat); declPath != "" {
		raw, err := os.ReadFile(declPath)
		if err != nil {
			return nil, err
		}
		decl, err := rset.ParseFormatYAML(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", declPath, err)
		}
		opts.Declaration = &decl
	}
	rs, err := rset.NewRecordSet(opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logger.Debug("loaded", "file", path, "encoding", method, "adapter", adapterName, "rows", rs.Count())
	return &session{logger: logger, reg: reg, rs: rs}, nil
}

func inputEncoding(name, path string) (rset.EncodingMethod, error) {
	if name == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".mp", ".msgpack":
			name = "msgpack"
		default:
			name = "json"
		}
	}
	return rset.ParseEncodingMethod(name)
}

// detectAdapter picks columnar for a {d, s|f} object and plain otherwise.
func detectAdapter(tree any) string {
	if m, ok := tree.(map[string]any); ok {
		_, hasS := m["s"]
		_, hasF := m["f"]
		if _, hasD := m["d"]; hasD && (hasS || hasF) {
			return rset.AdapterColumnar
		}
	}
	return rset.AdapterPlain
}
