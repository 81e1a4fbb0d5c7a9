// Package flex lets a Lua script decide which ways become road edges,
// replacing the built-in highway allowlist for uses the fixed set cannot
// express (conditional access tags, regional road classes, and so on).
//
// The script defines a single function:
//
//	function accept_way(tags)
//	    return tags["highway"] ~= nil and tags["access"] ~= "private"
//	end
package flex

import (
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/streetlevel/mapraster-go/internal/logger"
)

// Filter evaluates way tags with a user-provided Lua function.
// It implements osmbuild.WayFilter.
type Filter struct {
	mu  sync.Mutex // LState is not goroutine-safe
	L   *lua.LState
	fn  lua.LValue
	log *zap.Logger
}

// NewFilter loads a Lua script and extracts its accept_way function
func NewFilter(path string) (*Filter, error) {
	L := lua.NewState()

	if err := L.DoFile(path); err != nil {
		L.Close()
		return nil, fmt.Errorf("failed to load Lua filter: %w", err)
	}

	fn := L.GetGlobal("accept_way")
	if fn == lua.LNil {
		L.Close()
		return nil, fmt.Errorf("lua filter %s does not define accept_way", path)
	}

	return &Filter{L: L, fn: fn, log: logger.Get()}, nil
}

// NewFilterFromString loads the filter from Lua source (for testing)
func NewFilterFromString(code string) (*Filter, error) {
	L := lua.NewState()

	if err := L.DoString(code); err != nil {
		L.Close()
		return nil, fmt.Errorf("failed to load Lua filter: %w", err)
	}

	fn := L.GetGlobal("accept_way")
	if fn == lua.LNil {
		L.Close()
		return nil, fmt.Errorf("lua filter does not define accept_way")
	}

	return &Filter{L: L, fn: fn, log: logger.Get()}, nil
}

// Routable calls accept_way with the way's tags. A script error rejects the
// way and logs a warning rather than aborting the build.
func (f *Filter) Routable(tags map[string]string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	tbl := f.L.NewTable()
	for k, v := range tags {
		tbl.RawSetString(k, lua.LString(v))
	}

	if err := f.L.CallByParam(lua.P{Fn: f.fn, NRet: 1, Protect: true}, tbl); err != nil {
		f.log.Warn("Lua filter error, rejecting way", zap.Error(err))
		return false
	}

	ret := f.L.Get(-1)
	f.L.Pop(1)
	return lua.LVAsBool(ret)
}

// Close releases Lua resources
func (f *Filter) Close() {
	f.L.Close()
}
