package main

import (
	"fmt"
	"os"

	pngstream "github.com/928799934/go-png-stream"
)

func main() {
	f, err := os.Open("./example.png")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer f.Close()

	r := pngstream.NewReader(f)
	hdr, err := r.LoadHeader()
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("%dx%d, depth %d, color type %d\n", hdr.Width, hdr.Height, hdr.BitDepth, hdr.ColorType)

	img, err := r.Load(pngstream.DefaultOptions())
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("decoded %d pixels as %s (%d bytes)\n", img.Len(), img.Format, len(img.PixelsAsBytes()))
}
