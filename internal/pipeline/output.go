package pipeline

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"tile-splitter/internal/areas"
)

const (
	AreasFile = "areas.list"
	ArgsFile  = "template.args"
)

// outPath：相对路径落在 output-dir 下
func (p *Pipeline) outPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(p.cfg.OutputDir, name)
}

// WriteOutputs：写出 areas.list、template.args，以及配置了的 KML / GeoJSON，返回写出的路径
func (p *Pipeline) WriteOutputs(list *areas.List) ([]string, error) {
	if err := os.MkdirAll(p.cfg.OutputDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "output dir %s", p.cfg.OutputDir)
	}
	type output struct {
		name  string
		write func(io.Writer) error
	}
	outs := []output{
		{AreasFile, list.WriteText},
		{ArgsFile, func(w io.Writer) error { return list.WriteArgs(w, p.cfg.Description) }},
	}
	if p.cfg.WriteKML != "" {
		outs = append(outs, output{p.cfg.WriteKML, list.WriteKML})
	}
	if p.cfg.WriteGeoJSON != "" {
		outs = append(outs, output{p.cfg.WriteGeoJSON, list.WriteGeoJSON})
	}
	var files []string
	for _, o := range outs {
		path := p.outPath(o.name)
		if err := writeFile(path, o.write); err != nil {
			return files, err
		}
		files = append(files, path)
	}
	return files, nil
}

// writeFile：先写临时文件再改名，失败时不留下半截文件
func writeFile(path string, write func(io.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrapf(err, "write %s", path)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "close %s", path)
	}
	return errors.Wrapf(os.Rename(tmp, path), "rename %s", path)
}
