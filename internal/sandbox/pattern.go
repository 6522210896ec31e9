package sandbox

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// Lua pattern matching with every step charged to the budget. The stock
// string library backtracks inside one VM instruction, so a pathological
// pattern would run unbounded and ignore cancellation.

const (
	maxCaptures   = 32
	maxMatchDepth = 200

	capUnfinished = -1
	capPosition   = -2

	patternSpecials = "^$*+?.([%-"
)

// patternError is raised for malformed patterns.
type patternError string

func (e patternError) Error() string { return string(e) }

// budgetTripped aborts a match once spend reports the budget is gone.
type budgetTripped struct{}

type capture struct {
	init, len int
}

type matcher struct {
	src, pat string
	spend    func() bool

	level   int
	depth   int
	capture [maxCaptures]capture
}

func (b *budget) newMatcher(src, pat string) *matcher {
	return &matcher{src: src, pat: pat, spend: b.spend}
}

func (m *matcher) charge() {
	if !m.spend() {
		panic(budgetTripped{})
	}
}

func (m *matcher) fail(format string, args ...any) {
	panic(patternError(fmt.Sprintf(format, args...)))
}

// match returns the end of the match of pat[p:] at src[s:], or -1.
func (m *matcher) match(s, p int) int {
	m.charge()
	m.depth++
	if m.depth > maxMatchDepth {
		m.fail("pattern too complex")
	}
	res := m.matchItems(s, p)
	m.depth--
	return res
}

func (m *matcher) matchItems(s, p int) int {
	for {
		if p == len(m.pat) {
			return s
		}
		switch m.pat[p] {
		case '(':
			if p+1 < len(m.pat) && m.pat[p+1] == ')' {
				return m.startCapture(s, p+2, capPosition)
			}
			return m.startCapture(s, p+1, capUnfinished)
		case ')':
			return m.endCapture(s, p+1)
		case '$':
			if p+1 == len(m.pat) {
				if s == len(m.src) {
					return s
				}
				return -1
			}
		case '%':
			if p+1 < len(m.pat) {
				switch c := m.pat[p+1]; {
				case c == 'b':
					if s = m.matchBalance(s, p+2); s < 0 {
						return -1
					}
					p += 4
					m.charge()
					continue
				case c == 'f':
					p += 2
					if p >= len(m.pat) || m.pat[p] != '[' {
						m.fail("missing '[' after '%%f' in pattern")
					}
					ep := m.classEnd(p)
					var prev, cur byte
					if s > 0 {
						prev = m.src[s-1]
					}
					if s < len(m.src) {
						cur = m.src[s]
					}
					if matchBracketClass(prev, m.pat, p, ep-1) || !matchBracketClass(cur, m.pat, p, ep-1) {
						return -1
					}
					p = ep
					m.charge()
					continue
				case isDigit(c):
					if s = m.matchCapture(s, c); s < 0 {
						return -1
					}
					p += 2
					m.charge()
					continue
				}
			}
		}

		ep := m.classEnd(p)
		ok := s < len(m.src) && singleMatch(m.src[s], m.pat, p, ep)
		if ep < len(m.pat) {
			switch m.pat[ep] {
			case '?':
				if ok {
					if res := m.match(s+1, ep+1); res >= 0 {
						return res
					}
				}
				p = ep + 1
				m.charge()
				continue
			case '*':
				return m.maxExpand(s, p, ep)
			case '+':
				if !ok {
					return -1
				}
				return m.maxExpand(s+1, p, ep)
			case '-':
				return m.minExpand(s, p, ep)
			}
		}
		if !ok {
			return -1
		}
		s++
		p = ep
		m.charge()
	}
}

func (m *matcher) maxExpand(s, p, ep int) int {
	i := 0
	for s+i < len(m.src) && singleMatch(m.src[s+i], m.pat, p, ep) {
		i++
		m.charge()
	}
	for ; i >= 0; i-- {
		if res := m.match(s+i, ep+1); res >= 0 {
			return res
		}
	}
	return -1
}

func (m *matcher) minExpand(s, p, ep int) int {
	for {
		if res := m.match(s, ep+1); res >= 0 {
			return res
		}
		if s < len(m.src) && singleMatch(m.src[s], m.pat, p, ep) {
			s++
		} else {
			return -1
		}
	}
}

func (m *matcher) startCapture(s, p, what int) int {
	if m.level >= maxCaptures {
		m.fail("too many captures")
	}
	m.capture[m.level] = capture{init: s, len: what}
	m.level++
	res := m.match(s, p)
	if res < 0 {
		m.level--
	}
	return res
}

func (m *matcher) endCapture(s, p int) int {
	l := -1
	for i := m.level - 1; i >= 0; i-- {
		if m.capture[i].len == capUnfinished {
			l = i
			break
		}
	}
	if l < 0 {
		m.fail("invalid pattern capture")
	}
	m.capture[l].len = s - m.capture[l].init
	res := m.match(s, p)
	if res < 0 {
		m.capture[l].len = capUnfinished
	}
	return res
}

func (m *matcher) matchCapture(s int, c byte) int {
	l := int(c) - '1'
	if l < 0 || l >= m.level || m.capture[l].len == capUnfinished {
		m.fail("invalid capture index")
	}
	cp := m.capture[l]
	if cp.len < 0 || len(m.src)-s < cp.len {
		return -1
	}
	if m.src[cp.init:cp.init+cp.len] == m.src[s:s+cp.len] {
		return s + cp.len
	}
	return -1
}

func (m *matcher) matchBalance(s, p int) int {
	if p+1 >= len(m.pat) {
		m.fail("unbalanced pattern")
	}
	if s >= len(m.src) || m.src[s] != m.pat[p] {
		return -1
	}
	open, shut := m.pat[p], m.pat[p+1]
	depth := 1
	for s++; s < len(m.src); s++ {
		m.charge()
		switch m.src[s] {
		case shut:
			if depth--; depth == 0 {
				return s + 1
			}
		case open:
			depth++
		}
	}
	return -1
}

// classEnd returns the index just past the single-character class at p.
func (m *matcher) classEnd(p int) int {
	c := m.pat[p]
	p++
	switch c {
	case '%':
		if p >= len(m.pat) {
			m.fail("malformed pattern (ends with '%%')")
		}
		return p + 1
	case '[':
		if p < len(m.pat) && m.pat[p] == '^' {
			p++
		}
		for {
			if p >= len(m.pat) {
				m.fail("malformed pattern (missing ']')")
			}
			c := m.pat[p]
			p++
			if c == '%' && p < len(m.pat) {
				p++
			}
			if p < len(m.pat) && m.pat[p] == ']' {
				return p + 1
			}
		}
	}
	return p
}

func singleMatch(c byte, pat string, p, ep int) bool {
	switch pat[p] {
	case '.':
		return true
	case '%':
		return matchClass(c, pat[p+1])
	case '[':
		return matchBracketClass(c, pat, p, ep-1)
	}
	return pat[p] == c
}

// matchBracketClass reports whether c is in the set pat[p:ec+1], where p
// is the opening bracket and ec the closing one.
func matchBracketClass(c byte, pat string, p, ec int) bool {
	sig := true
	if pat[p+1] == '^' {
		sig = false
		p++
	}
	for p++; p < ec; p++ {
		switch {
		case pat[p] == '%':
			p++
			if matchClass(c, pat[p]) {
				return sig
			}
		case pat[p+1] == '-' && p+2 < ec:
			p += 2
			if pat[p-2] <= c && c <= pat[p] {
				return sig
			}
		case pat[p] == c:
			return sig
		}
	}
	return !sig
}

func matchClass(c, cl byte) bool {
	var res bool
	switch cl | 0x20 {
	case 'a':
		res = isAlpha(c)
	case 'c':
		res = c < 0x20 || c == 0x7f
	case 'd':
		res = isDigit(c)
	case 'l':
		res = 'a' <= c && c <= 'z'
	case 'p':
		res = isPunct(c)
	case 's':
		res = c == ' ' || ('\t' <= c && c <= '\r')
	case 'u':
		res = 'A' <= c && c <= 'Z'
	case 'w':
		res = isAlpha(c) || isDigit(c)
	case 'x':
		res = isDigit(c) || ('a' <= c|0x20 && c|0x20 <= 'f')
	case 'z':
		res = c == 0
	default:
		return cl == c
	}
	if 'A' <= cl && cl <= 'Z' {
		return !res
	}
	return res
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }
func isAlpha(c byte) bool { return 'a' <= c|0x20 && c|0x20 <= 'z' }
func isPunct(c byte) bool { return c > 0x20 && c < 0x7f && !isAlpha(c) && !isDigit(c) }

// captureValue returns capture i of the match src[s:e]. With no captures,
// capture 0 is the whole match.
func (m *matcher) captureValue(i, s, e int) lua.LValue {
	if i >= m.level {
		if i != 0 {
			m.fail("invalid capture index")
		}
		return lua.LString(m.src[s:e])
	}
	c := m.capture[i]
	switch c.len {
	case capUnfinished:
		m.fail("unfinished capture")
	case capPosition:
		return lua.LNumber(c.init + 1)
	}
	return lua.LString(m.src[c.init : c.init+c.len])
}

func (m *matcher) captures(s, e int, whole bool) []lua.LValue {
	n := m.level
	if n == 0 && whole {
		n = 1
	}
	vals := make([]lua.LValue, n)
	for i := range vals {
		vals[i] = m.captureValue(i, s, e)
	}
	return vals
}

func push(L *lua.LState, vals ...lua.LValue) int {
	for _, v := range vals {
		L.Push(v)
	}
	return len(vals)
}

// guard runs fn and turns matcher aborts into Lua errors. Once the budget has
// tripped, classify reports its kind instead of the message.
func (b *budget) guard(L *lua.LState, fn func() int) int {
	n, err := recoverPattern(fn)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	return n
}

func recoverPattern(fn func() int) (n int, err error) {
	defer func() {
		switch r := recover().(type) {
		case nil:
		case patternError:
			err = r
		case budgetTripped:
			err = errBudgetTripped
		default:
			panic(r)
		}
	}()
	return fn(), nil
}

var errBudgetTripped = patternError("script budget exhausted")

// posrelat resolves a 1-based, possibly negative, string position.
func posrelat(pos, n int) int {
	if pos < 0 {
		return n + pos + 1
	}
	return pos
}

func (b *budget) strFind(L *lua.LState) int { return b.find(L, true) }
func (b *budget) strMatch(L *lua.LState) int { return b.find(L, false) }

func (b *budget) find(L *lua.LState, find bool) int {
	src := L.CheckString(1)
	pat := L.CheckString(2)
	init := posrelat(L.OptInt(3, 1), len(src)) - 1
	if init < 0 {
		init = 0
	} else if init > len(src) {
		init = len(src)
	}

	if find && (lua.LVAsBool(L.Get(4)) || !strings.ContainsAny(pat, patternSpecials)) {
		i := strings.Index(src[init:], pat)
		if i < 0 {
			L.Push(lua.LNil)
			return 1
		}
		return push(L, lua.LNumber(init+i+1), lua.LNumber(init+i+len(pat)))
	}

	return b.guard(L, func() int {
		m := b.newMatcher(src, pat)
		p, anchor := 0, strings.HasPrefix(pat, "^")
		if anchor {
			p = 1
		}
		for s := init; ; s++ {
			m.level = 0
			if e := m.match(s, p); e >= 0 {
				if find {
					n := push(L, lua.LNumber(s+1), lua.LNumber(e))
					return n + push(L, m.captures(s, e, false)...)
				}
				return push(L, m.captures(s, e, true)...)
			}
			if s >= len(src) || anchor {
				break
			}
		}
		L.Push(lua.LNil)
		return 1
	})
}

func (b *budget) strGmatch(L *lua.LState) int {
	src := L.CheckString(1)
	pat := L.CheckString(2)
	start := 0
	L.Push(L.NewFunction(func(L *lua.LState) int {
		return b.guard(L, func() int {
			m := b.newMatcher(src, pat)
			for s := start; s <= len(src); s++ {
				m.level = 0
				if e := m.match(s, 0); e >= 0 {
					start = e
					if e == s {
						start++
					}
					return push(L, m.captures(s, e, true)...)
				}
			}
			return 0
		})
	}))
	return 1
}

func (b *budget) strGsub(L *lua.LState) int {
	src := L.CheckString(1)
	pat := L.CheckString(2)
	repl := L.Get(3)
	switch repl.Type() {
	case lua.LTString, lua.LTNumber, lua.LTTable, lua.LTFunction:
	default:
		L.ArgError(3, "string/function/table expected")
	}
	limit := L.OptInt(4, len(src)+1)

	return b.guard(L, func() int {
		m := b.newMatcher(src, pat)
		p, anchor := 0, strings.HasPrefix(pat, "^")
		if anchor {
			p = 1
		}
		var out strings.Builder
		n, s := 0, 0
		for n < limit {
			m.level = 0
			e := m.match(s, p)
			if e >= 0 {
				n++
				b.addValue(L, m, &out, s, e, repl)
			}
			if e > s {
				s = e
			} else if s < len(src) {
				out.WriteByte(src[s])
				s++
			} else {
				break
			}
			if anchor {
				break
			}
		}
		out.WriteString(src[s:])
		return push(L, lua.LString(out.String()), lua.LNumber(n))
	})
}

func (b *budget) addValue(L *lua.LState, m *matcher, out *strings.Builder, s, e int, repl lua.LValue) {
	var v lua.LValue
	switch r := repl.(type) {
	case lua.LString, lua.LNumber:
		m.addString(out, s, e, r.String())
	case *lua.LTable:
		v = L.GetTable(r, m.captureValue(0, s, e))
	case *lua.LFunction:
		caps := m.captures(s, e, true)
		L.Push(r)
		push(L, caps...)
		L.Call(len(caps), 1)
		v = L.Get(-1)
		L.Pop(1)
	}
	if v != nil {
		switch v.(type) {
		case lua.LString, lua.LNumber:
			out.WriteString(v.String())
		default:
			if lua.LVAsBool(v) {
				m.fail("invalid replacement value (a %s)", v.Type().String())
			}
			out.WriteString(m.src[s:e])
		}
	}
	if int64(out.Len()) > b.limits.MaxMemory {
		b.trip(ErrMemoryLimit)
		panic(budgetTripped{})
	}
}

// addString expands %0 to %9 in repl; a % before any other byte yields
// that byte.
func (m *matcher) addString(out *strings.Builder, s, e int, repl string) {
	for i := 0; i < len(repl); i++ {
		c := repl[i]
		if c != '%' {
			out.WriteByte(c)
			continue
		}
		i++
		if i == len(repl) {
			break
		}
		switch c = repl[i]; {
		case c == '0':
			out.WriteString(m.src[s:e])
		case isDigit(c):
			out.WriteString(m.captureValue(int(c-'1'), s, e).String())
		default:
			out.WriteByte(c)
		}
	}
}
