package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"

	"github.com/saasforge/modlife"
)

// Backup writes a zip archive of the module's files to w. Archive
// entries are relative to the module directory; scratch space under
// temp/ is excluded, matching ListFiles.
func (m *Manager) Backup(ctx context.Context, tenant modlife.TenantID, module string, w io.Writer) error {
	files, err := m.ListFiles(ctx, tenant, module)
	if err != nil {
		return err
	}
	base := m.ModuleDir(tenant, module)

	archive := zip.NewWriter(w)
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			_ = archive.Close()
			return err
		}
		if err := addToArchive(archive, base, file.Path); err != nil {
			_ = archive.Close()
			return fmt.Errorf("backing up %s for %s/%s: %w", file.Path, tenant, module, err)
		}
	}
	if err := archive.Close(); err != nil {
		return fmt.Errorf("finalizing backup for %s/%s: %w", tenant, module, err)
	}
	m.logger.Info("Backed up module storage", "tenant", tenant, "module", module, "files", len(files))
	return nil
}

func addToArchive(archive *zip.Writer, base, relPath string) error {
	src, err := os.Open(filepath.Join(base, filepath.FromSlash(relPath)))
	if err != nil {
		return err
	}
	defer src.Close()

	entry, err := archive.Create(relPath)
	if err != nil {
		return err
	}
	_, err = io.Copy(entry, src)
	return err
}
