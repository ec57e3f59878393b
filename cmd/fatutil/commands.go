package main

import (
	"fmt"
	"io"
	"os"

	"github.com/gocarina/gocsv"
	fat "github.com/hgrove/fatfs"
	"github.com/urfave/cli/v2"
)

var blockSizeFlag = &cli.IntFlag{Name: "block-size", Usage: "sector size in bytes", Value: defaultBlockSize}

// dirEntry is the gocsv-marshaled row shape for "list-dir --csv".
type dirEntry struct {
	Name      string `csv:"name"`
	SizeBytes int64  `csv:"size_bytes"`
	IsDir     bool   `csv:"is_dir"`
}

var listDirCommand = &cli.Command{
	Name:      "list-dir",
	Aliases:   []string{"ls"},
	Usage:     "List the contents of a directory in an image",
	ArgsUsage: "IMAGE_PATH DIR_PATH",
	Flags: []cli.Flag{
		blockSizeFlag,
		&cli.BoolFlag{Name: "csv", Usage: "print the listing as CSV instead of a plain table"},
	},
	Action: func(c *cli.Context) error {
		imagePath, dirPath := c.Args().Get(0), c.Args().Get(1)
		if imagePath == "" || dirPath == "" {
			return fmt.Errorf("list-dir: usage: list-dir IMAGE_PATH DIR_PATH")
		}
		dev, f, err := openDevice(imagePath, c.Int("block-size"))
		if err != nil {
			return fmt.Errorf("list-dir: %w", err)
		}
		defer f.Close()

		var fsys fat.FS
		if err := fsys.Mount(dev, c.Int("block-size"), fat.ModeRead); err != nil {
			return fmt.Errorf("list-dir: mount: %w", err)
		}
		defer fsys.Dismount()

		var dir fat.Dir
		if err := fsys.OpenDir(&dir, dirPath); err != nil {
			return fmt.Errorf("list-dir: open %s: %w", dirPath, err)
		}

		var entries []dirEntry
		err = dir.ForEachFile(func(fi *fat.FileInfo) error {
			entries = append(entries, dirEntry{
				Name:      fi.Name(),
				SizeBytes: fi.Size(),
				IsDir:     fi.IsDir(),
			})
			return nil
		})
		if err != nil {
			return fmt.Errorf("list-dir: %w", err)
		}

		if c.Bool("csv") {
			out, err := gocsv.MarshalString(&entries)
			if err != nil {
				return fmt.Errorf("list-dir: csv: %w", err)
			}
			fmt.Fprint(c.App.Writer, out)
			return nil
		}
		for _, e := range entries {
			kind := "-"
			if e.IsDir {
				kind = "d"
			}
			fmt.Fprintf(c.App.Writer, "%s\t%10d\t%s\n", kind, e.SizeBytes, e.Name)
		}
		return nil
	},
}

var catCommand = &cli.Command{
	Name:      "cat",
	Usage:     "Print a file's contents to stdout",
	ArgsUsage: "IMAGE_PATH FILE_PATH",
	Flags:     []cli.Flag{blockSizeFlag},
	Action: func(c *cli.Context) error {
		imagePath, filePath := c.Args().Get(0), c.Args().Get(1)
		if imagePath == "" || filePath == "" {
			return fmt.Errorf("cat: usage: cat IMAGE_PATH FILE_PATH")
		}
		dev, f, err := openDevice(imagePath, c.Int("block-size"))
		if err != nil {
			return fmt.Errorf("cat: %w", err)
		}
		defer f.Close()

		var fsys fat.FS
		if err := fsys.Mount(dev, c.Int("block-size"), fat.ModeRead); err != nil {
			return fmt.Errorf("cat: mount: %w", err)
		}
		defer fsys.Dismount()

		var fp fat.File
		if err := fsys.OpenFile(&fp, filePath, fat.ModeRead); err != nil {
			return fmt.Errorf("cat: open %s: %w", filePath, err)
		}
		if _, err := io.Copy(c.App.Writer, &fp); err != nil {
			fp.Close()
			return fmt.Errorf("cat: %w", err)
		}
		return fp.Close()
	},
}

var fsckCommand = &cli.Command{
	Name:  "fsck",
	Usage: "Check (and optionally reclaim lost clusters in) an image",
	Flags: []cli.Flag{
		blockSizeFlag,
		&cli.BoolFlag{Name: "reclaim", Usage: "free every lost chain the check finds"},
	},
	ArgsUsage: "IMAGE_PATH",
	Action: func(c *cli.Context) error {
		imagePath := c.Args().First()
		if imagePath == "" {
			return fmt.Errorf("fsck: missing IMAGE_PATH argument")
		}
		mode := fat.ModeRead
		if c.Bool("reclaim") {
			mode = fat.ModeRW
		}
		dev, f, err := openDevice(imagePath, c.Int("block-size"))
		if err != nil {
			return fmt.Errorf("fsck: %w", err)
		}
		defer f.Close()

		var fsys fat.FS
		if err := fsys.Mount(dev, c.Int("block-size"), mode); err != nil {
			return fmt.Errorf("fsck: mount: %w", err)
		}
		defer fsys.Dismount()

		if c.Bool("reclaim") {
			freed, err := fsys.Reclaim()
			if err != nil {
				return fmt.Errorf("fsck: reclaim: %w", err)
			}
			fmt.Fprintf(c.App.Writer, "reclaimed %d clusters\n", freed)
			return nil
		}

		report, err := fsys.Check()
		if err != nil {
			return fmt.Errorf("fsck: %w", err)
		}
		fmt.Fprintf(c.App.Writer, "total clusters: %d\nfree clusters:  %d\nlost chains:    %d\ncross-linked:   %d\nclean:          %v\n",
			report.TotalClusters, report.FreeClusters, len(report.LostChains), len(report.CrossLinked), report.Clean())
		if !report.Clean() {
			os.Exit(1)
		}
		return nil
	},
}
