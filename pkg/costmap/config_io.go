package costmap

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/lintang-b-s/gridnav/pkg/util"
)

// EnvConfig is a parsed nav2d environment file: the true cost map plus the endpoints.
type EnvConfig struct {
	Map   *CostMap
	Start Cell
	Goal  Cell
}

const bz2Suffix = ".bz2"

// ReadEnvConfig reads a nav2d environment file. Files ending in .bz2 are decompressed.
func ReadEnvConfig(filename string) (*EnvConfig, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(filename, bz2Suffix) {
		bz, err := bzip2.NewReader(f, nil)
		if err != nil {
			return nil, err
		}
		defer bz.Close()
		r = bz
	}

	cfg, err := ParseEnvConfig(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	return cfg, nil
}

// ParseEnvConfig parses
//
//	discretization(cells): <w> <h>
//	obsthresh: <t>
//	start(cells): <x> <y>
//	end(cells): <x> <y>
//	environment:
//	<h rows of w costs>
func ParseEnvConfig(r io.Reader) (*EnvConfig, error) {
	br := bufio.NewReader(r)
	width, height, threshold := -1, -1, -1
	var start, goal Cell
	var haveStart, haveGoal bool

	for {
		line, err := util.ReadLine(br)
		if errors.Is(err, io.EOF) {
			return nil, util.WrapErrorf(nil, ErrMalformedConfig, "costmap: missing environment section")
		}
		if err != nil {
			return nil, err
		}
		ff := fields(line)
		if len(ff) == 0 {
			continue
		}

		switch ff[0] {
		case "discretization(cells):":
			if width, height, err = parsePair(ff); err != nil {
				return nil, err
			}
		case "obsthresh:":
			if len(ff) != 2 {
				return nil, util.WrapErrorf(nil, ErrMalformedConfig, "costmap: bad obsthresh line %q", line)
			}
			if threshold, err = parseCost(ff[1]); err != nil {
				return nil, err
			}
		case "start(cells):":
			x, y, err := parsePair(ff)
			if err != nil {
				return nil, err
			}
			start, haveStart = NewCell(x, y), true
		case "end(cells):":
			x, y, err := parsePair(ff)
			if err != nil {
				return nil, err
			}
			goal, haveGoal = NewCell(x, y), true
		case "environment:":
			if width < 1 || height < 1 || threshold < 0 || !haveStart || !haveGoal {
				return nil, util.WrapErrorf(nil, ErrMalformedConfig,
					"costmap: discretization, obsthresh, start and end must precede environment")
			}
			cm, err := readGrid(br, width, height, uint8(threshold))
			if err != nil {
				return nil, err
			}
			if !cm.InBounds(start) || !cm.InBounds(goal) {
				return nil, util.WrapErrorf(nil, ErrMalformedConfig, "costmap: start %v or goal %v outside %dx%d map",
					start, goal, width, height)
			}
			return &EnvConfig{Map: cm, Start: start, Goal: goal}, nil
		default:
			return nil, util.WrapErrorf(nil, ErrMalformedConfig, "costmap: unknown key %q", ff[0])
		}
	}
}

func readGrid(br *bufio.Reader, width, height int, threshold uint8) (*CostMap, error) {
	cm, err := New(width, height, threshold)
	if err != nil {
		return nil, err
	}
	values := make([]uint8, 0, width*height)
	for len(values) < width*height {
		line, err := util.ReadLine(br)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		for _, tok := range fields(line) {
			c, err := parseCost(tok)
			if err != nil {
				return nil, err
			}
			values = append(values, uint8(c))
		}
	}
	if len(values) != width*height {
		return nil, util.WrapErrorf(nil, ErrMalformedConfig, "costmap: environment has %d cells, want %d",
			len(values), width*height)
	}
	copy(cm.costs, values)
	return cm, nil
}

// WriteEnvConfig writes cfg in the nav2d text format, bzip2 compressed if filename ends in .bz2.
func WriteEnvConfig(filename string, cfg *EnvConfig) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if !strings.HasSuffix(filename, bz2Suffix) {
		return FormatEnvConfig(f, cfg)
	}

	bz, err := bzip2.NewWriter(f, &bzip2.WriterConfig{})
	if err != nil {
		return err
	}
	if err := FormatEnvConfig(bz, cfg); err != nil {
		bz.Close()
		return err
	}
	return bz.Close()
}

func FormatEnvConfig(out io.Writer, cfg *EnvConfig) error {
	w := bufio.NewWriter(out)
	cm := cfg.Map
	fmt.Fprintf(w, "discretization(cells): %d %d\n", cm.width, cm.height)
	fmt.Fprintf(w, "obsthresh: %d\n", cm.obstacleThreshold)
	fmt.Fprintf(w, "start(cells): %d %d\n", cfg.Start.X, cfg.Start.Y)
	fmt.Fprintf(w, "end(cells): %d %d\n", cfg.Goal.X, cfg.Goal.Y)
	fmt.Fprintf(w, "environment:\n")
	for y := 0; y < cm.height; y++ {
		for x := 0; x < cm.width; x++ {
			if x > 0 {
				fmt.Fprintf(w, " ")
			}
			fmt.Fprintf(w, "%d", cm.costs[x+y*cm.width])
		}
		fmt.Fprintf(w, "\n")
	}
	return w.Flush()
}

func fields(s string) []string {
	return strings.Fields(s)
}

func parsePair(ff []string) (int, int, error) {
	if len(ff) != 3 {
		return 0, 0, util.WrapErrorf(nil, ErrMalformedConfig, "costmap: %s expects two values", ff[0])
	}
	a, err := strconv.Atoi(ff[1])
	if err != nil {
		return 0, 0, util.WrapErrorf(err, ErrMalformedConfig, "costmap: bad value for %s", ff[0])
	}
	b, err := strconv.Atoi(ff[2])
	if err != nil {
		return 0, 0, util.WrapErrorf(err, ErrMalformedConfig, "costmap: bad value for %s", ff[0])
	}
	return a, b, nil
}

func parseCost(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, util.WrapErrorf(err, ErrMalformedConfig, "costmap: bad cost %q", s)
	}
	if v < 0 || v > 255 {
		return 0, util.WrapErrorf(nil, ErrMalformedConfig, "costmap: cost %d outside [0,255]", v)
	}
	return v, nil
}
