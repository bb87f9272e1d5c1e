// ABOUTME: Registers every builtin pack with a registry builder.
// ABOUTME: The files pack is optional and only added when a root is configured.

package builtins

import (
	"fmt"

	"github.com/uavcrew/compliance-gateway/internal/packs"
	"github.com/uavcrew/compliance-gateway/internal/store"
)

// Options selects the optional packs.
type Options struct {
	// FilesRoot enables the files pack when non-empty.
	FilesRoot    string
	MaxReadBytes int64
}

// RegisterAll registers the compliance and entities packs, plus the files
// pack when opts.FilesRoot is set.
func RegisterAll(b *packs.Builder, catalog store.Catalog, opts Options) error {
	all := []*packs.BuiltinPack{CompliancePack(), EntitiesPack(catalog)}

	if opts.FilesRoot != "" {
		files, err := FilesPack(opts.FilesRoot, opts.MaxReadBytes)
		if err != nil {
			return err
		}
		all = append(all, files)
	}

	for _, pack := range all {
		if err := b.RegisterPack(pack); err != nil {
			return fmt.Errorf("registering %s: %w", pack.ID, err)
		}
	}
	return nil
}
