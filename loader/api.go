package loader

import (
	lua "github.com/yuin/gopher-lua"
)

// registerAPI registers all Lua constructors and helpers as globals.
func registerAPI(L *lua.LState, coll *collector) {
	registerConstructors(L, coll)
	registerHelpers(L)
}

func registerConstructors(L *lua.LState, coll *collector) {
	// Game { title = "...", start = "..." }
	L.SetGlobal("Game", L.NewFunction(func(L *lua.LState) int {
		coll.game = L.CheckTable(1)
		coll.gameFile = coll.file
		return 0
	}))

	// Scene "id" { type = "...", content = { ... } }. Curried: Scene("id")
	// returns a function that takes the table.
	L.SetGlobal("Scene", L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			tbl.RawSetString("id", lua.LString(id))
			data, err := tableJSON(tbl)
			if err != nil {
				L.RaiseError("scene %s: %v", id, err)
				return 0
			}
			coll.add(id, data)
			return 0
		}))
		return 1
	}))
}

func registerHelpers(L *lua.LState) {
	// Prompt("...") is an image generated from a text prompt.
	L.SetGlobal("Prompt", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("prompt", lua.LString(L.CheckString(1)))
		L.Push(tbl)
		return 1
	}))

	// FlagSet("flag") requires a truthy flag.
	L.SetGlobal("FlagSet", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("flag", lua.LString(L.CheckString(1)))
		L.Push(tbl)
		return 1
	}))

	// StatAtLeast("path", n) requires a stat of at least n.
	L.SetGlobal("StatAtLeast", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("stat", lua.LString(L.CheckString(1)))
		tbl.RawSetString("minValue", L.CheckNumber(2))
		L.Push(tbl)
		return 1
	}))

	// Speaker("id", "Name") names who says a panel's text.
	L.SetGlobal("Speaker", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("id", lua.LString(L.CheckString(1)))
		tbl.RawSetString("name", lua.LString(L.CheckString(2)))
		if portrait := L.OptString(3, ""); portrait != "" {
			tbl.RawSetString("portrait", lua.LString(portrait))
		}
		L.Push(tbl)
		return 1
	}))
}
