// Command pngdump inspects PNG files: it walks the chunk layout, verifies
// checksums and optionally runs a full decode.
package main

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	pngstream "github.com/928799934/go-png-stream"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	rootCmd := &cobra.Command{
		Use:   "pngdump",
		Short: "Inspect and decode PNG files",
	}
	rootCmd.AddCommand(infoCommand(), decodeCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func infoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info FILE",
		Short: "Print the chunk layout and header fields",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			f, err := os.Open(args[0])
			if err != nil {
				log.Fatal().Err(err).Msg("open input")
			}
			defer f.Close()

			hdr, err := pngstream.NewReader(f).LoadHeader()
			if err != nil {
				log.Fatal().Err(err).Msg("read header")
			}
			fmt.Printf("%s: %dx%d depth=%d color=%d interlace=%d\n",
				args[0], hdr.Width, hdr.Height, hdr.BitDepth, hdr.ColorType, hdr.Interlace)

			if _, err := f.Seek(0, io.SeekStart); err != nil {
				log.Fatal().Err(err).Msg("rewind input")
			}
			if err := walkChunks(f); err != nil {
				log.Fatal().Err(err).Msg("walk chunks")
			}
		},
	}
}

// walkChunks prints every chunk's type, length and CRC status without
// inflating the image data.
func walkChunks(f *os.File) error {
	var sig [8]byte
	if _, err := io.ReadFull(f, sig[:]); err != nil {
		return err
	}
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(f, hdr[:]); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		length := binary.BigEndian.Uint32(hdr[:4])
		typ := string(hdr[4:8])

		crc := crc32.NewIEEE()
		crc.Write(hdr[4:8])
		if _, err := io.CopyN(crc, f, int64(length)); err != nil {
			return err
		}
		var sum [4]byte
		if _, err := io.ReadFull(f, sum[:]); err != nil {
			return err
		}
		status := "ok"
		if binary.BigEndian.Uint32(sum[:]) != crc.Sum32() {
			status = "BAD CRC"
		}
		fmt.Printf("  %s  % 8d bytes  crc %s\n", typ, length, status)
		if typ == "IEND" {
			return nil
		}
	}
}

func decodeCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "decode FILE",
		Short: "Fully decode a PNG and report the result",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			f, err := os.Open(args[0])
			if err != nil {
				log.Fatal().Err(err).Msg("open input")
			}
			defer f.Close()

			r := pngstream.NewReader(f)
			hdr, err := r.LoadHeader()
			if err != nil {
				log.Fatal().Err(err).Msg("read header")
			}
			img, err := r.Load(pngstream.DefaultOptions())
			if err != nil {
				log.Fatal().Err(err).Msg("decode")
			}
			log.Info().
				Uint32("width", hdr.Width).
				Uint32("height", hdr.Height).
				Stringer("format", img.Format).
				Int("pixels", img.Len()).
				Int("bytes", len(img.PixelsAsBytes())).
				Msg("decoded")

			if out != "" {
				if err := writePPM(out, img, int(hdr.Width), int(hdr.Height)); err != nil {
					log.Fatal().Err(err).Msg("write output")
				}
				log.Info().Str("path", out).Msg("wrote ppm")
			}
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Write the decoded pixels as a binary PPM")
	return cmd
}

// writePPM dumps RGB-like storage as a binary P6 file.
func writePPM(path string, img *pngstream.PixelStorage, w, h int) error {
	stride := img.Format.PixelStride()
	if img.Format != pngstream.RGB24 && img.Format != pngstream.RGBA32 {
		return fmt.Errorf("ppm output needs rgb24 or rgba32, have %s", img.Format)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "P6\n%d %d\n255\n", w, h); err != nil {
		return err
	}
	pix := img.PixelsAsBytes()
	for i := 0; i < len(pix); i += stride {
		if _, err := f.Write(pix[i : i+3]); err != nil {
			return err
		}
	}
	return nil
}
