// Command mkfs assembles a bootable disk image: bootloader, kernel, and a
// flat manifest of skeleton files, written block-by-block through
// drivers/block.HostDisk.
//
// Adapted from biscuit's src/mkfs/mkfs.go, which builds a full
// on-disk inode filesystem (ufs) from a skeleton directory. The installer
// workflow and the on-disk inode format are both out of scope here, so
// this tool keeps biscuit's host-side walking/copying shape but writes a
// minimal flat manifest instead of a journaled inode tree: each skeleton
// file becomes one contiguous block run, recorded by name in a manifest
// block devfs's boot-time code can read back without a general-purpose
// filesystem driver.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"x86kernel/drivers/block"
)

// Layout constants for the produced image, in block.Size units.
const (
	bootBlocks     = 1    // block 0: bootloader
	kernelMaxBlocks = 2048 // blocks 1..2048: kernel image
	manifestBlock  = kernelMaxBlocks + 1
	dataStartBlock = manifestBlock + 1
)

// manifestEntry records where one skeleton file landed in the image.
type manifestEntry struct {
	Name        string `json:"name"`
	StartBlock  int    `json:"start_block"`
	LengthBytes int    `json:"length_bytes"`
}

// copyBlocks streams src's contents into disk starting at block startBlock,
// returning the number of bytes written. Grounded on biscuit's copydata,
// adapted from ufs.Ufs_t.Append's buffered-chunk loop to block.WriteSync.
func copyBlocks(disk *block.HostDisk, src string, startBlock int) int {
	f, err := os.Open(src)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	total := 0
	blk := startBlock
	buf := make([]byte, block.Size)
	for {
		n, readErr := io.ReadFull(f, buf)
		if n > 0 {
			b := &block.Block{Number: blk}
			copy(b.Data[:], buf[:n])
			block.WriteSync(disk, b)
			total += n
			blk++
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			panic(readErr)
		}
	}
	return total
}

// addSkeletonFiles walks skelDir on the host and copies every regular file
// into disk, appending one manifestEntry per file. Grounded on the
// teacher's addfiles/filepath.WalkDir traversal.
func addSkeletonFiles(disk *block.HostDisk, skelDir string, nextBlock int) []manifestEntry {
	var entries []manifestEntry
	err := filepath.WalkDir(skelDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			fmt.Printf("failed to access %q: %v\n", path, err)
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel := strings.TrimPrefix(path, skelDir)
		n := copyBlocks(disk, path, nextBlock)
		blocksUsed := (n + block.Size - 1) / block.Size
		if blocksUsed == 0 {
			blocksUsed = 1
		}
		entries = append(entries, manifestEntry{Name: rel, StartBlock: nextBlock, LengthBytes: n})
		nextBlock += blocksUsed
		return nil
	})
	if err != nil {
		fmt.Printf("error walking the path %q: %v\n", skelDir, err)
		os.Exit(1)
	}
	return entries
}

func writeManifest(disk *block.HostDisk, entries []manifestEntry) {
	buf, err := json.Marshal(entries)
	if err != nil {
		panic(err)
	}
	if len(buf) > block.Size {
		fmt.Printf("manifest too large for one block: %d bytes\n", len(buf))
		os.Exit(1)
	}
	b := &block.Block{Number: manifestBlock}
	copy(b.Data[:], buf)
	block.WriteSync(disk, b)
}

func main() {
	if len(os.Args) < 5 {
		fmt.Printf("Usage: mkfs <bootimage> <kernel image> <output image> <skel dir>\n")
		os.Exit(1)
	}
	bootImage, kernelImage, outImage, skelDir := os.Args[1], os.Args[2], os.Args[3], os.Args[4]

	disk, err := block.OpenHostDisk(outImage)
	if err != nil {
		panic(err)
	}
	defer disk.Close()

	bn := copyBlocks(disk, bootImage, 0)
	if bn > bootBlocks*block.Size {
		fmt.Printf("bootloader image larger than the reserved %d-block region\n", bootBlocks)
		os.Exit(1)
	}

	kn := copyBlocks(disk, kernelImage, bootBlocks)
	if kn > kernelMaxBlocks*block.Size {
		fmt.Printf("kernel image larger than the reserved %d-block region\n", kernelMaxBlocks)
		os.Exit(1)
	}

	entries := addSkeletonFiles(disk, skelDir, dataStartBlock)
	writeManifest(disk, entries)

	fmt.Printf("wrote %s: bootloader %d bytes, kernel %d bytes, %d skeleton files\n",
		outImage, bn, kn, len(entries))
}
