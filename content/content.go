// Package content embeds the bundled story: the prologue and the first
// chapter after it.
package content

import (
	"embed"
	"io/fs"

	"github.com/nathoo/jianghu/engine/state"
	"github.com/nathoo/jianghu/loader"
)

//go:embed story/*.lua
var files embed.FS

// Story returns the bundled content files.
func Story() fs.FS {
	sub, err := fs.Sub(files, "story")
	if err != nil {
		panic(err) // the embed pattern guarantees the directory
	}
	return sub
}

// Load loads the bundled story.
func Load(opts ...loader.Option) (*state.Defs, error) {
	return loader.Load(Story(), opts...)
}
