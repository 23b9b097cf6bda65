package gdbforge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const releaseIndexKey = "release-index.json"

// ReleaseEntry describes one published toolchain tarball in the remote
// release index.
type ReleaseEntry struct {
	Target     string `json:"target"`
	GDBVersion string `json:"gdb_version"`
	Filename   string `json:"filename"`
	B3Sum      string `json:"b3sum"`
	Size       int64  `json:"size"`
	Date       string `json:"date"`
}

func parseReleaseIndex(data []byte) ([]ReleaseEntry, error) {
	var entries []ReleaseEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// handlePackageCommand wraps one target's installed tree into a release
// tarball next to the build root. The tree must exist and be non-empty.
func handlePackageCommand(target BuildTarget) error {
	ws := newWorkspace(target)
	prefix := InstallPrefix{Stage: "gdb", Path: ws.OutputDir}
	if err := prefix.Verify(); err != nil {
		return fmt.Errorf("nothing to package for %s: %w", target, err)
	}

	announce("Packaging %s", ws.OutputDir)
	tarballPath, err := createReleaseTarball(target, ws.OutputDir)
	if err != nil {
		return err
	}

	sum, err := b3sumFile(tarballPath)
	if err == nil {
		colArrow.Print("-> ")
		colSuccess.Printf("Packaged ")
		colNote.Printf("%s (b3 %s)\n", tarballPath, sum)
	}
	return nil
}

// handleUploadCommand syncs local release tarballs to R2 and refreshes the
// remote release index. Tarballs whose checksum already matches the index
// are skipped. With --cleanup, remote tarballs no longer referenced by the
// index are deleted.
func handleUploadCommand(args []string, cfg *Config) error {
	ctx := context.Background()

	cleanup := false
	for _, arg := range args {
		if arg == "--cleanup" || arg == "-c" {
			cleanup = true
		}
	}

	r2, err := NewR2Client(cfg)
	if err != nil {
		return err
	}

	announce("Fetching remote release index")
	var remoteIndex []ReleaseEntry
	if data, err := r2.DownloadFile(ctx, releaseIndexKey); err != nil {
		debugf("Remote index not found or error fetching: %v\n", err)
	} else if remoteIndex, err = parseReleaseIndex(data); err != nil {
		return fmt.Errorf("failed to parse remote index: %w", err)
	}

	indexByTarget := make(map[string]ReleaseEntry)
	for _, entry := range remoteIndex {
		indexByTarget[entry.Target] = entry
	}

	announce("Scanning local release tarballs in %s", buildRoot)
	var uploadedCount int
	for _, target := range ValidTargets() {
		tarballPath := filepath.Join(buildRoot, releaseTarballName(target, gdbVersion))
		stat, err := os.Stat(tarballPath)
		if err != nil {
			continue
		}

		sum, err := b3sumFile(tarballPath)
		if err != nil {
			return fmt.Errorf("failed to checksum %s: %w", tarballPath, err)
		}

		if remote, ok := indexByTarget[target.String()]; ok && remote.B3Sum == sum {
			debugf("Skipping %s: remote is current\n", tarballPath)
			continue
		}

		filename := filepath.Base(tarballPath)
		announce("Uploading %s", filename)
		if err := r2.UploadLocalFile(ctx, filename, tarballPath); err != nil {
			return fmt.Errorf("failed to upload %s: %w", filename, err)
		}

		indexByTarget[target.String()] = ReleaseEntry{
			Target:     target.String(),
			GDBVersion: gdbVersion,
			Filename:   filename,
			B3Sum:      sum,
			Size:       stat.Size(),
			Date:       time.Now().UTC().Format("2006-01-02"),
		}
		uploadedCount++
	}

	if uploadedCount == 0 && !cleanup {
		colArrow.Print("-> ")
		colSuccess.Println("Everything up to date.")
		return nil
	}

	if cleanup {
		announce("Cleaning up unreferenced tarballs on R2")
		active := make(map[string]bool)
		for _, entry := range indexByTarget {
			active[entry.Filename] = true
		}
		objects, err := r2.ListObjects(ctx, "")
		if err != nil {
			return fmt.Errorf("failed to list remote files: %w", err)
		}
		for _, obj := range objects {
			if !strings.HasSuffix(obj.Key, ".tar.zst") || active[obj.Key] {
				continue
			}
			colArrow.Print("-> ")
			colWarn.Printf("Deleting stale remote tarball: %s\n", obj.Key)
			if err := r2.DeleteFile(ctx, obj.Key); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to delete %s: %v\n", obj.Key, err)
			}
		}
	}

	announce("Updating remote release index")
	var finalized []ReleaseEntry
	for _, entry := range indexByTarget {
		finalized = append(finalized, entry)
	}
	sort.Slice(finalized, func(i, j int) bool {
		return finalized[i].Target < finalized[j].Target
	})

	indexBytes, err := json.MarshalIndent(finalized, "", "  ")
	if err != nil {
		return err
	}
	if err := r2.UploadFile(ctx, releaseIndexKey, indexBytes); err != nil {
		return fmt.Errorf("failed to upload index: %w", err)
	}

	reportBucketUsage(ctx, r2)
	colSuccess.Printf("Sync complete. Uploaded %d tarballs.\n", uploadedCount)
	return nil
}

func reportBucketUsage(ctx context.Context, r2 *R2Client) {
	objects, err := r2.ListObjects(ctx, "")
	if err != nil {
		return
	}
	var totalSize int64
	for _, obj := range objects {
		totalSize += obj.Size
	}

	const tenGB = 10 * 1024 * 1024 * 1024
	percent := (float64(totalSize) / float64(tenGB)) * 100
	colArrow.Print("-> ")
	colSuccess.Printf("Storage used: ")
	colNote.Printf("%s / 10 GiB (%.1f%%)\n", humanReadableSize(totalSize), percent)
	if totalSize > (tenGB * 9 / 10) {
		colWarn.Println("Warning: over 90% of the free R2 storage limit in use")
	}
}

func humanReadableSize(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
