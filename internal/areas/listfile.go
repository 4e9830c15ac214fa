package areas

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"tile-splitter/internal/geo"
)

// ParseError：区域列表文件格式错误，调用方可回退到重新计算
type ParseError struct {
	Source string
	Line   int
	Text   string
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s: %q", e.Source, e.Line, e.Msg, e.Text)
}

var recordRe = regexp.MustCompile(`^(\d+):\s*(-?\d+),\s*(-?\d+)\s+to\s+(-?\d+),\s*(-?\d+)$`)

// WriteText：写出 areas.list 文本格式
// 格式：每个瓦片一行 "<mapid>: minLat,minLon to maxLat,maxLon"，随后一行角度注释；# 开头的行为注释
func (l *List) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "# List of areas")
	fmt.Fprintf(bw, "# %d areas, bounds %v\n", l.Len(), l.bounds)
	fmt.Fprintln(bw, "#")
	for _, a := range l.areas {
		b := a.Bounds
		fmt.Fprintf(bw, "%08d: %d,%d to %d,%d\n", a.MapID, b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
		fmt.Fprintf(bw, "#       : %s\n", b.DegreesString())
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}

// ReadText：解析 areas.list 文本格式，source 仅用于错误信息
func ReadText(r io.Reader, source string) (*List, error) {
	l := NewList()
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m := recordRe.FindStringSubmatch(line)
		if m == nil {
			return nil, &ParseError{Source: source, Line: n, Text: line, Msg: "malformed area record"}
		}
		var v [5]int
		for i := range v {
			x, err := strconv.Atoi(m[i+1])
			if err != nil {
				return nil, &ParseError{Source: source, Line: n, Text: line, Msg: "number out of range"}
			}
			v[i] = x
		}
		if !ValidMapID(v[0]) {
			return nil, &ParseError{Source: source, Line: n, Text: line, Msg: "map id out of range"}
		}
		b := geo.Area{MinLat: v[1], MinLon: v[2], MaxLat: v[3], MaxLon: v[4]}
		if b.MinLat > b.MaxLat || b.MinLon > b.MaxLon {
			return nil, &ParseError{Source: source, Line: n, Text: line, Msg: "min greater than max"}
		}
		a := NewSubArea(b, 0)
		a.MapID = v[0]
		l.Add(a)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "read %s", source)
	}
	return l, nil
}

// Write：按扩展名选择格式写出文件（.kml 为 KML，其余为 areas.list 文本）
func (l *List) Write(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if isKML(path) {
		err = l.WriteKML(f)
	} else {
		err = l.WriteText(f)
	}
	if err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}

// Read：按扩展名选择格式读取文件
func Read(path string) (*List, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	if isKML(path) {
		return ReadKML(f, path)
	}
	return ReadText(f, path)
}

func isKML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".kml")
}
