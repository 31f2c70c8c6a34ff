package cmd

import (
	"encoding/json"
	"io"
	"path/filepath"

	"github.com/grovetools/packreload/config"
	"github.com/grovetools/packreload/toolchain"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func devDir(s *config.Settings) string {
	return filepath.Join(s.Workspace, toolchain.DevDirName)
}
