package extract

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

var errNotSVG = errors.New("root element is not <svg>")

type svgDoc struct {
	width, height string
	viewBox       string
}

func parseSVGFile(path string) (*svgDoc, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseSVG(f)
}

// parseSVG reads tokens up to the root element and keeps its sizing attributes.
func parseSVG(r io.Reader) (*svgDoc, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errNotSVG
			}
			return nil, fmt.Errorf("parse svg: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if se.Name.Local != "svg" {
			return nil, errNotSVG
		}
		doc := &svgDoc{}
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "width":
				doc.width = a.Value
			case "height":
				doc.height = a.Value
			case "viewBox":
				doc.viewBox = a.Value
			}
		}
		return doc, nil
	}
}

// size prefers explicit width/height and falls back to the viewBox.
func (d *svgDoc) size() (int, int, error) {
	w, werr := parseSVGLength(d.width)
	h, herr := parseSVGLength(d.height)
	if werr == nil && herr == nil {
		return w, h, nil
	}

	fields := strings.FieldsFunc(d.viewBox, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' || r == '\n' })
	if len(fields) != 4 {
		return 0, 0, errors.New("svg has no usable width/height or viewBox")
	}
	vw, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("svg viewBox width: %w", err)
	}
	vh, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("svg viewBox height: %w", err)
	}
	if vw <= 0 || vh <= 0 {
		return 0, 0, fmt.Errorf("svg viewBox is %gx%g", vw, vh)
	}
	return int(math.Round(vw)), int(math.Round(vh)), nil
}

// parseSVGLength accepts unitless or px lengths. Relative units cannot be resolved.
func parseSVGLength(s string) (int, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "px")
	if s == "" {
		return 0, errors.New("empty length")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("non-positive length %g", v)
	}
	return int(math.Round(v)), nil
}
