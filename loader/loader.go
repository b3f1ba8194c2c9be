// Package loader reads authored scenes from Lua and JSON files into the
// immutable scene repository. The Lua VM is discarded after loading.
package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/nathoo/jianghu/engine/state"
	"github.com/nathoo/jianghu/types"
)

// rawEntry is one scene document and the file it came from.
type rawEntry struct {
	id   string
	file string
	data []byte
}

// collector accumulates definitions while files execute.
type collector struct {
	file     string
	game     *lua.LTable
	gameFile string
	gameJSON []byte
	scenes   []rawEntry
}

func (c *collector) add(id string, data []byte) {
	c.scenes = append(c.scenes, rawEntry{id: id, file: c.file, data: data})
}

// Option configures Load.
type Option func(*options)

type options struct {
	log *zap.Logger
}

// WithLogger sets the logger that receives content warnings.
func WithLogger(l *zap.Logger) Option { return func(o *options) { o.log = l } }

// LoadDir loads content from a directory on disk.
func LoadDir(dir string, opts ...Option) (*state.Defs, error) {
	defs, err := Load(os.DirFS(dir), opts...)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", dir, err)
	}
	return defs, nil
}

// Load reads every .lua and .json file at the root of fsys, decodes the
// scenes, validates references, and returns the immutable Defs. Scenes keep
// the order they were declared in, file by file.
func Load(fsys fs.FS, opts ...Option) (*state.Defs, error) {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}

	var files []string
	for _, e := range entries {
		ext := path.Ext(e.Name())
		if !e.IsDir() && (ext == ".lua" || ext == ".json") {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .lua or .json files found")
	}
	files = sortedFiles(files)

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	openSafeLibs(L)
	sandbox(L)

	coll := &collector{}
	registerAPI(L, coll)

	for _, f := range files {
		src, err := fs.ReadFile(fsys, f)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f, err)
		}
		coll.file = f
		if strings.HasSuffix(f, ".json") {
			err = readJSON(coll, src)
		} else {
			err = runLua(L, f, src)
		}
		if err != nil {
			return nil, fmt.Errorf("executing %s: %w", f, err)
		}
	}

	defs, err := compile(coll)
	if err != nil {
		return nil, fmt.Errorf("compiling content: %w", err)
	}
	if err := validate(defs, o.log); err != nil {
		return nil, err
	}
	return defs, nil
}

func runLua(L *lua.LState, name string, src []byte) error {
	fn, err := L.Load(bytes.NewReader(src), name)
	if err != nil {
		return err
	}
	L.Push(fn)
	return L.PCall(0, lua.MultRet, nil)
}

// readJSON accepts a single scene, an array of scenes, or
// {"game": {...}, "scenes": [...]}.
func readJSON(coll *collector, src []byte) error {
	trimmed := bytes.TrimSpace(src)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty file")
	}

	var docs []json.RawMessage
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &docs); err != nil {
			return err
		}
	} else {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err != nil {
			return err
		}
		scenes, hasScenes := probe["scenes"]
		game, hasGame := probe["game"]
		switch {
		case hasScenes || hasGame:
			if hasGame {
				coll.gameJSON = game
				coll.gameFile = coll.file
			}
			if hasScenes {
				if err := json.Unmarshal(scenes, &docs); err != nil {
					return fmt.Errorf("scenes: %w", err)
				}
			}
		default:
			docs = []json.RawMessage{trimmed}
		}
	}

	for _, d := range docs {
		var head struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(d, &head); err != nil {
			return err
		}
		coll.add(head.ID, d)
	}
	return nil
}

// compile decodes the collected documents into a repository.
func compile(coll *collector) (*state.Defs, error) {
	var game types.GameDef
	switch {
	case coll.game != nil:
		data, err := tableJSON(coll.game)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", coll.gameFile, err)
		}
		if game, err = decodeGame(data); err != nil {
			return nil, fmt.Errorf("%s: %w", coll.gameFile, err)
		}
	case coll.gameJSON != nil:
		var err error
		if game, err = decodeGame(coll.gameJSON); err != nil {
			return nil, fmt.Errorf("%s: %w", coll.gameFile, err)
		}
	}

	scenes := make([]types.Scene, 0, len(coll.scenes))
	seen := make(map[string]string, len(coll.scenes))
	for _, raw := range coll.scenes {
		if prev, dup := seen[raw.id]; dup && raw.id != "" {
			return nil, fmt.Errorf("%s: scene %q already defined in %s", raw.file, raw.id, prev)
		}
		seen[raw.id] = raw.file

		sc, err := decodeScene(raw.data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", raw.file, err)
		}
		scenes = append(scenes, sc)
	}
	return state.NewDefs(game, scenes), nil
}

// openSafeLibs opens only the safe subset of Lua standard libraries.
func openSafeLibs(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// sandbox removes globals that reach outside the content directory or break
// determinism.
func sandbox(L *lua.LState) {
	dangerous := []string{
		"dofile", "loadfile", "load", "loadstring",
		"rawset", "rawget", "rawequal",
		"collectgarbage",
	}
	for _, name := range dangerous {
		L.SetGlobal(name, lua.LNil)
	}

	if tbl, ok := L.GetGlobal("math").(*lua.LTable); ok {
		tbl.RawSetString("random", lua.LNil)
		tbl.RawSetString("randomseed", lua.LNil)
	}
}
