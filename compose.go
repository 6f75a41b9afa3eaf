package mapview

import "image"

// tileSources are the frames feeding one tile composite.
type tileSources struct {
	primary   *image.NRGBA // door-state-selected frame
	secondary *image.NRGBA // alternate frame, nil when the tile has none
	overlay   *image.NRGBA // nil when no overlay applies
	palette   bool
}

// composeMasked writes the primary pixel wherever it is not fully transparent
// and the overlay pixel everywhere else.
func composeMasked(dst []uint8, src tileSources) {
	p := src.primary.Pix
	o := src.overlay.Pix
	for i := 0; i+3 < len(dst); i += 4 {
		if p[i+3] != 0 {
			copy(dst[i:i+4], p[i:i+4])
		} else {
			copy(dst[i:i+4], o[i:i+4])
		}
	}
}

// composeBlended weights primary and secondary pixels against the overlay
// pixel with w: 0 keeps the tile pixel, 255 shows only the overlay.
func composeBlended(dst []uint8, src tileSources, w uint8) {
	p := src.primary.Pix
	o := src.overlay.Pix
	var s []uint8
	if src.secondary != nil {
		s = src.secondary.Pix
	}
	passThrough := s == nil && !src.palette
	for i := 0; i+3 < len(dst); i += 4 {
		pOpaque := p[i+3] != 0
		sOpaque := s != nil && s[i+3] != 0
		switch {
		case pOpaque && sOpaque:
			for c := 0; c < 4; c++ {
				avg := uint8((uint16(p[i+c]) + uint16(s[i+c])) >> 1)
				dst[i+c] = mix8(avg, o[i+c], w)
			}
		case pOpaque:
			if passThrough {
				copy(dst[i:i+4], p[i:i+4])
				continue
			}
			for c := 0; c < 4; c++ {
				dst[i+c] = mix8(p[i+c], o[i+c], w)
			}
		case sOpaque:
			for c := 0; c < 4; c++ {
				dst[i+c] = mix8(s[i+c], o[i+c], w)
			}
		default:
			copy(dst[i:i+4], o[i:i+4])
		}
	}
}

// mix8 linearly interpolates from a to b by w/255.
func mix8(a, b, w uint8) uint8 {
	return uint8((uint32(a)*uint32(255-w) + uint32(b)*uint32(w) + 127) / 255)
}

// blendAux blends the area of aux covering the tile at (tx, ty) of a
// mapW x mapH map over dst with alpha a. Each tile pixel samples the aux
// pixel its map position falls on.
func blendAux(dst, aux *image.NRGBA, tx, ty, mapW, mapH int, a uint8) {
	ab := aux.Bounds()
	if a == 0 || mapW <= 0 || mapH <= 0 || ab.Empty() {
		return
	}
	aw, ah := ab.Dx(), ab.Dy()
	d := dst.Pix
	for y := 0; y < TileSize; y++ {
		sy := ab.Min.Y + min((ty+y)*ah/mapH, ah-1)
		for x := 0; x < TileSize; x++ {
			sx := ab.Min.X + min((tx+x)*aw/mapW, aw-1)
			s := aux.Pix[aux.PixOffset(sx, sy):]
			// aux pixels carry their own coverage in alpha
			w := uint8(uint32(a) * uint32(s[3]) / 255)
			if w == 0 {
				continue
			}
			i := y*dst.Stride + x*4
			d[i+0] = mix8(d[i+0], s[0], w)
			d[i+1] = mix8(d[i+1], s[1], w)
			d[i+2] = mix8(d[i+2], s[2], w)
		}
	}
}
