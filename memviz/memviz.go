// Package memviz renders a buddy allocator's free-list snapshot
// (buddy.OrderDump) as a PNG bar chart: one horizontal row per order,
// colored segments for each free block, labeled with the order number.
// Grounded on spec.md §6.2 and the domain-stack wiring in SPEC_FULL.md §6.2.
package memviz

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/Redd-Hibb/stacsos/buddy"
)

const (
	rowHeight   = 20
	labelWidth  = 40
	barWidth    = 600
	marginLeft  = 4
	marginTop   = 4
)

// Render draws one row per entry in dump, top to bottom in the order the
// entries are given (for a buddy.Snapshot, order 0 at the top), and
// returns the composed image. total is
// the byte span the bar represents; blocks are drawn proportionally
// within barWidth pixels. A total of 0 draws an empty chart.
func Render(dump []buddy.OrderDump, total uint64) image.Image {
	height := marginTop*2 + rowHeight*len(dump)
	width := marginLeft + labelWidth + barWidth + marginLeft

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	face := basicfont.Face7x13

	for i, od := range dump {
		y := marginTop + i*rowHeight
		drawLabel(img, face, od.Order, marginLeft, y+rowHeight/2+4)
		drawRow(img, od, total, marginLeft+labelWidth, y, barWidth, rowHeight-2)
	}

	return img
}

func drawLabel(img *image.RGBA, face font.Face, order, x, baseline int) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: face,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(orderLabel(order))
}

func orderLabel(order int) string {
	digits := "0123456789"
	if order < 0 {
		return "??"
	}
	tens, ones := order/10, order%10
	return string([]byte{digits[tens], digits[ones]})
}

func drawRow(img *image.RGBA, od buddy.OrderDump, total uint64, x, y, w, h int) {
	track := image.Rect(x, y, x+w, y+h)
	draw.Draw(img, track, image.NewUniform(trackColor), image.Point{}, draw.Src)

	if total == 0 {
		return
	}

	barColor := orderColor(od.Order)
	for _, blk := range od.Blocks {
		span := blk.Last - blk.Base + 1
		startPx := x + int(blk.Base*uint64(w)/total)
		widthPx := int(span * uint64(w) / total)
		if widthPx < 1 {
			widthPx = 1
		}
		rect := image.Rect(startPx, y, startPx+widthPx, y+h)
		draw.Draw(img, rect.Intersect(track), image.NewUniform(barColor), image.Point{}, draw.Src)
	}
}

var trackColor = color.RGBA{R: 0xe8, G: 0xe8, B: 0xe8, A: 0xff}

// orderColor cycles through a small fixed palette so adjacent orders are
// visually distinguishable without needing a real color scale.
func orderColor(order int) color.RGBA {
	palette := []color.RGBA{
		{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
		{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
		{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
		{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
		{R: 0x94, G: 0x67, B: 0xbd, A: 0xff},
	}
	return palette[order%len(palette)]
}
