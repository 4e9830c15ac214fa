package areas

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"

	"tile-splitter/internal/geo"
)

const kmlNamespace = "http://www.opengis.net/kml/2.2"

type kmlFile struct {
	XMLName  xml.Name    `xml:"kml"`
	NS       string      `xml:"xmlns,attr,omitempty"`
	Document kmlDocument `xml:"Document"`
}

type kmlDocument struct {
	Name       string         `xml:"name,omitempty"`
	Style      *kmlStyle      `xml:"Style,omitempty"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlStyle struct {
	ID        string `xml:"id,attr"`
	LineColor string `xml:"LineStyle>color"`
	PolyColor string `xml:"PolyStyle>color"`
}

type kmlPlacemark struct {
	Name     string `xml:"name"`
	StyleURL string `xml:"styleUrl,omitempty"`
	Coords   string `xml:"Polygon>outerBoundaryIs>LinearRing>coordinates"`
}

// WriteKML：每个瓦片一个 Placemark，名称为 mapid，外环为 4 角点加首点闭合（lon,lat 顺序）
func (l *List) WriteKML(w io.Writer) error {
	doc := kmlFile{
		NS: kmlNamespace,
		Document: kmlDocument{
			Name:  "splitter areas",
			Style: &kmlStyle{ID: "transWhitePoly", LineColor: "ffff0000", PolyColor: "00ffffff"},
		},
	}
	for _, a := range l.areas {
		doc.Document.Placemarks = append(doc.Document.Placemarks, kmlPlacemark{
			Name:     strconv.Itoa(a.MapID),
			StyleURL: "#transWhitePoly",
			Coords:   ringCoordinates(a.Bounds.Bound().ToRing()),
		})
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(&doc); err != nil {
		return errors.Wrap(err, "encode kml")
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func ringCoordinates(r orb.Ring) string {
	parts := make([]string, len(r))
	for i, p := range r {
		parts[i] = strconv.FormatFloat(p.Lon(), 'f', -1, 64) + "," + strconv.FormatFloat(p.Lat(), 'f', -1, 64)
	}
	return strings.Join(parts, " ")
}

// ReadKML：读取 WriteKML 的输出，也接受外部工具编辑过的同结构文件
// 约束：每个外环必须恰好 5 个点
func ReadKML(r io.Reader, source string) (*List, error) {
	var doc kmlFile
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrapf(err, "decode kml %s", source)
	}
	l := NewList()
	for i, pm := range doc.Document.Placemarks {
		id, err := strconv.Atoi(strings.TrimSpace(pm.Name))
		if err != nil {
			return nil, &ParseError{Source: source, Line: i + 1, Text: pm.Name, Msg: "placemark name is not a mapid"}
		}
		if !ValidMapID(id) {
			return nil, &ParseError{Source: source, Line: i + 1, Text: pm.Name, Msg: "map id out of range"}
		}
		ring, err := parseRing(pm.Coords)
		if err != nil {
			return nil, &ParseError{Source: source, Line: i + 1, Text: pm.Coords, Msg: err.Error()}
		}
		a := NewSubArea(geo.FromBound(ring.Bound()), 0)
		a.MapID = id
		l.Add(a)
	}
	return l, nil
}

func parseRing(s string) (orb.Ring, error) {
	fields := strings.Fields(s)
	if len(fields) != 5 {
		return nil, errors.Errorf("expected 5 coordinates, got %d", len(fields))
	}
	ring := make(orb.Ring, 0, 5)
	for _, f := range fields {
		parts := strings.Split(f, ",")
		if len(parts) < 2 {
			return nil, errors.Errorf("bad coordinate %q", f)
		}
		lon, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, errors.Errorf("bad longitude %q", parts[0])
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, errors.Errorf("bad latitude %q", parts[1])
		}
		ring = append(ring, orb.Point{lon, lat})
	}
	return ring, nil
}

// WriteGeoJSON：每个瓦片一个 Polygon 要素，属性含 mapid 与 size
func (l *List) WriteGeoJSON(w io.Writer) error {
	fc := geojson.NewFeatureCollection()
	for _, a := range l.areas {
		f := geojson.NewFeature(a.Bounds.Bound().ToPolygon())
		f.Properties["mapid"] = a.MapID
		f.Properties["size"] = a.Size
		f.Properties["bounds"] = a.Bounds.String()
		fc.Append(f)
	}
	b, err := fc.MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "encode geojson")
	}
	_, err = w.Write(b)
	return err
}

// WriteArgs：写出 mkgmap 的 template.args，每个瓦片一段
func (l *List) WriteArgs(w io.Writer, description string) error {
	var sb strings.Builder
	sb.WriteString("# template.args generated by splitter\n")
	for _, a := range l.areas {
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "mapname: %08d\n", a.MapID)
		if description != "" {
			fmt.Fprintf(&sb, "description: %s\n", description)
		}
		fmt.Fprintf(&sb, "input-file: %08d.osm.gz\n", a.MapID)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
