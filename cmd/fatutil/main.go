// Command fatutil inspects and maintains FAT12/FAT16/FAT32 disk images: it
// can format a fresh volume, list a directory, dump a file to stdout, and
// run a consistency check.
package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "fatutil",
		Usage: "inspect and maintain FAT12/16/32 disk images",
		Commands: []*cli.Command{
			mkfsCommand,
			listDirCommand,
			catCommand,
			fsckCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatutil: %s", err)
	}
}

func openDevice(path string, blockSize int) (*fileBlockDevice, *os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, nil, err
	}
	return newFileBlockDevice(f, blockSize), f, nil
}
