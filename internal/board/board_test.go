package board

import (
	"errors"
	"math"
	"os"
	"slices"
	"testing"
)

func TestMain(m *testing.M) {
	Init()
	os.Exit(m.Run())
}

func mustUCI(t *testing.T, s string) Move {
	t.Helper()
	m, err := ParseUCI(s)
	if err != nil {
		t.Fatalf("ParseUCI(%q): %v", s, err)
	}
	return m
}

func mustApply(t *testing.T, p *Position, m Move) Piece {
	t.Helper()
	captured, err := p.ApplyMove(m)
	if err != nil {
		t.Fatalf("ApplyMove(%s): %v", m, err)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("after %s: %v", m, err)
	}
	return captured
}

func mustPlace(t *testing.T, p *Position, pl Player, pt PieceType, sq Square) {
	t.Helper()
	if err := p.Place(pl, pt, sq); err != nil {
		t.Fatalf("Place(%s, %s, %s): %v", pl, pt, sq, err)
	}
}

type snapshot struct {
	pieces     [NumPlayers][pieceSlots]Bitboard
	byPlayer   [NumPlayers]Bitboard
	occupied   Bitboard
	active     [NumPlayers]bool
	numActive  int
	scores     [NumPlayers]int
	side       Player
	moveNumber int
	lastReset  int
	hash       uint64
	history    []uint64
}

func takeSnapshot(p *Position) snapshot {
	return snapshot{
		pieces:     p.pieces,
		byPlayer:   p.byPlayer,
		occupied:   p.occupied,
		active:     p.active,
		numActive:  p.numActive,
		scores:     p.scores,
		side:       p.side,
		moveNumber: p.moveNumber,
		lastReset:  p.lastReset,
		hash:       p.hash,
		history:    p.History(),
	}
}

func (s snapshot) equal(o snapshot) bool {
	h1, h2 := s.history, o.history
	s.history, o.history = nil, nil
	return s.pieces == o.pieces && s.byPlayer == o.byPlayer && s.occupied == o.occupied &&
		s.active == o.active && s.numActive == o.numActive && s.scores == o.scores &&
		s.side == o.side && s.moveNumber == o.moveNumber && s.lastReset == o.lastReset &&
		s.hash == o.hash && slices.Equal(h1, h2)
}

func TestNewPositionPanicsWithoutInit(t *testing.T) {
	initialized.Store(false)
	defer initialized.Store(true)
	defer func() {
		if recover() == nil {
			t.Fatal("NewPosition did not panic before Init")
		}
	}()
	NewPosition()
}

func TestStartPosition(t *testing.T) {
	p := NewPosition()
	if err := p.Validate(); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		sq   string
		want Piece
	}{
		{"a1", Piece{Red, Rook}},
		{"d1", Piece{Red, King}},
		{"c2", Piece{Red, Pawn}},
		{"a8", Piece{Blue, Rook}},
		{"a5", Piece{Blue, King}},
		{"b7", Piece{Blue, Pawn}},
		{"h8", Piece{Yellow, Rook}},
		{"e8", Piece{Yellow, King}},
		{"g7", Piece{Yellow, Pawn}},
		{"h4", Piece{Green, King}},
		{"h1", Piece{Green, Rook}},
		{"g3", Piece{Green, Pawn}},
	}
	for _, tt := range tests {
		t.Run(tt.sq, func(t *testing.T) {
			sq, _ := ParseSquare(tt.sq)
			if got := p.PieceAt(sq); got != tt.want {
				t.Errorf("PieceAt(%s) = %v, want %v", tt.sq, got, tt.want)
			}
		})
	}
	if got := p.Occupied().Count(); got != 32 {
		t.Errorf("occupied count = %d, want 32", got)
	}
	if p.SideToMove() != Red || p.NumActive() != 4 || p.UndoDepth() != 0 {
		t.Errorf("side=%s active=%d undo=%d", p.SideToMove(), p.NumActive(), p.UndoDepth())
	}
	if h := p.History(); len(h) != 1 || h[0] != p.Hash() {
		t.Errorf("history = %v, want [%016x]", h, p.Hash())
	}
}

func TestMagicAttacksMatchRayWalk(t *testing.T) {
	r := NewMT(42)
	for sq := Square(0); sq < NumSquares; sq++ {
		for i := 0; i < 500; i++ {
			occ := Bitboard(r.Uint64() & r.Uint64())
			if got, want := RookAttacks(sq, occ), SlowAttacks(sq, RookSlider, occ); got != want {
				t.Fatalf("RookAttacks(%s, %016x) = %016x, want %016x", sq, uint64(occ), uint64(got), uint64(want))
			}
			if got, want := BishopAttacks(sq, occ), SlowAttacks(sq, BishopSlider, occ); got != want {
				t.Fatalf("BishopAttacks(%s, %016x) = %016x, want %016x", sq, uint64(occ), uint64(got), uint64(want))
			}
		}
	}
}

func TestFindMagic(t *testing.T) {
	tests := []struct {
		sq Square
		s  Slider
	}{
		{0, RookSlider},
		{27, RookSlider},
		{63, BishopSlider},
		{36, BishopSlider},
	}
	for _, tt := range tests {
		t.Run(tt.s.String()+"/"+tt.sq.String(), func(t *testing.T) {
			magic, err := FindMagic(tt.sq, tt.s, NewMT(int64(tt.sq)+1))
			if err != nil {
				t.Fatal(err)
			}
			if _, err := buildMagicEntry(tt.sq, tt.s, magic); err != nil {
				t.Errorf("found magic %016x collides: %v", magic, err)
			}
		})
	}
}

func TestStartMoves(t *testing.T) {
	p := NewPosition()
	got := p.SideMoves()
	SortMoves(got)
	var ucis []string
	for _, m := range got {
		ucis = append(ucis, m.UCI())
	}
	want := []string{"a2a3", "b1a3", "b1c3", "b2b3", "c2c3", "d1e1", "d1e2", "d2d3"}
	slices.Sort(ucis)
	if !slices.Equal(ucis, want) {
		t.Errorf("start moves = %v, want %v", ucis, want)
	}
}

func TestPerft(t *testing.T) {
	tests := []struct {
		depth int
		want  uint64
	}{
		{1, 8},
		{2, 64},
		{3, 512},
	}
	for _, tt := range tests {
		p := NewPosition()
		before := takeSnapshot(p)
		got, err := Perft(p, tt.depth)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("Perft(%d) = %d, want %d", tt.depth, got, tt.want)
		}
		if !takeSnapshot(p).equal(before) {
			t.Errorf("Perft(%d) did not restore the position", tt.depth)
		}
	}

	divide, err := PerftDivide(NewPosition(), 2)
	if err != nil {
		t.Fatal(err)
	}
	var sum uint64
	for _, d := range divide {
		sum += d.Nodes
	}
	if len(divide) != 8 || sum != 64 {
		t.Errorf("PerftDivide(2): %d moves, %d nodes; want 8, 64", len(divide), sum)
	}
}

func TestApplyUndoRoundTrip(t *testing.T) {
	r := NewMT(7)
	for game := 0; game < 100; game++ {
		p := NewPosition()
		var snaps []snapshot
		for ply := 0; ply < 24; ply++ {
			moves := p.SideMoves()
			if len(moves) == 0 {
				break
			}
			snaps = append(snaps, takeSnapshot(p))
			mustApply(t, p, moves[r.Intn(len(moves))])
		}
		if len(snaps) < 20 {
			t.Fatalf("game %d: only %d moves played", game, len(snaps))
		}
		for i := len(snaps) - 1; i >= 0; i-- {
			if err := p.UndoLastMove(); err != nil {
				t.Fatalf("game %d undo %d: %v", game, i, err)
			}
			if !takeSnapshot(p).equal(snaps[i]) {
				t.Fatalf("game %d: state after undo to ply %d differs", game, i)
			}
			if p.Termination() != NotTerminated {
				t.Fatalf("game %d: termination cache survived undo", game)
			}
		}
		if err := p.UndoLastMove(); !errors.Is(err, ErrNoUndo) {
			t.Fatalf("undo on fresh position: err = %v, want ErrNoUndo", err)
		}
	}
}

func TestApplyMoveEmptySquare(t *testing.T) {
	p := NewPosition()
	_, err := p.ApplyMove(mustUCI(t, "e4e5"))
	if !errors.Is(err, ErrEmptySquare) {
		t.Fatalf("err = %v, want ErrEmptySquare", err)
	}
	if p.UndoDepth() != 0 {
		t.Errorf("failed move pushed an undo record")
	}
}

func TestRepetition(t *testing.T) {
	out := []string{"b1c3", "a7c6", "g8f6", "h2f3"}
	back := []string{"c3b1", "c6a7", "f6g8", "f3h2"}
	var seq []string
	for round := 0; round < 4; round++ {
		if round%2 == 0 {
			seq = append(seq, out...)
		} else {
			seq = append(seq, back...)
		}
	}

	p := NewPosition()
	start := p.Hash()
	for i, s := range seq {
		mustApply(t, p, mustUCI(t, s))
		last := i == len(seq)-1
		if p.IsTerminal() != last {
			t.Fatalf("after move %d (%s): terminal=%v, want %v", i+1, s, p.IsTerminal(), last)
		}
	}
	if p.Hash() != start {
		t.Errorf("hash after shuffle = %016x, want start %016x", p.Hash(), start)
	}
	if p.Termination() != Repetition || p.Termination().String() != "threefold_repetition" {
		t.Errorf("termination = %v, want repetition", p.Termination())
	}
	res := p.Result()
	for pl, v := range res {
		if v != 2 {
			t.Errorf("result[%s] = %d, want 2", Player(pl), v)
		}
	}

	if err := p.UndoLastMove(); err != nil {
		t.Fatal(err)
	}
	if p.Termination() != NotTerminated || p.IsTerminal() {
		t.Errorf("undo did not clear the repetition")
	}
}

// snakePath walks rows 7 down to 2, alternating direction, one king step at a time.
func snakePath() []Square {
	var path []Square
	for i, row := 0, 7; row >= 2; i, row = i+1, row-1 {
		for c := 0; c < BoardSize; c++ {
			col := c
			if i%2 == 1 {
				col = BoardSize - 1 - c
			}
			path = append(path, SquareAt(row, col))
		}
	}
	return path
}

func TestNoProgress(t *testing.T) {
	path := snakePath()
	p := NewEmptyPosition(Red)
	mustPlace(t, p, Red, King, path[0])
	toggles := [][2]Square{
		Blue:   {SquareAt(0, 0), SquareAt(0, 1)},
		Yellow: {SquareAt(0, 3), SquareAt(0, 4)},
		Green:  {SquareAt(0, 6), SquareAt(0, 7)},
	}
	for pl := Blue; pl <= Green; pl++ {
		mustPlace(t, p, pl, King, toggles[pl][0])
	}

	redIdx := 0
	for round := 1; round <= NoProgressLimit; round++ {
		next := redIdx + 1
		if round > len(path)-1 {
			next = redIdx - 1
		}
		mustApply(t, p, Move{From: path[redIdx], To: path[next]})
		redIdx = next
		for pl := Blue; pl <= Green; pl++ {
			from, to := toggles[pl][0], toggles[pl][1]
			if round%2 == 0 {
				from, to = to, from
			}
			mustApply(t, p, Move{From: from, To: to})
			final := round == NoProgressLimit && pl == Green
			if p.IsTerminal() != final {
				t.Fatalf("round %d after %s: terminal=%v (%v), want %v", round, pl, p.IsTerminal(), p.Termination(), final)
			}
		}
	}
	if p.Termination() != NoProgress || p.Termination().String() != "fifty_move_rule" {
		t.Fatalf("termination = %v, want no progress", p.Termination())
	}
	if got := p.MoveNumber() - p.LastResetMove(); got != NoProgressLimit {
		t.Errorf("rounds since reset = %d, want %d", got, NoProgressLimit)
	}
}

func TestPromotion(t *testing.T) {
	p := NewEmptyPosition(Red)
	mustPlace(t, p, Red, Pawn, SquareAt(1, 0))
	mustPlace(t, p, Red, King, SquareAt(7, 7))
	mustPlace(t, p, Blue, Knight, SquareAt(0, 1))

	var promos []Move
	for _, m := range p.SideMoves() {
		if m.From == SquareAt(1, 0) {
			promos = append(promos, m)
		}
	}
	SortMoves(promos)
	want := []Move{
		{From: SquareAt(1, 0), To: SquareAt(0, 0), Promotion: Rook},
		{From: SquareAt(1, 0), To: SquareAt(0, 1), Promotion: Rook},
	}
	if !slices.Equal(promos, want) {
		t.Fatalf("pawn moves = %v, want %v", promos, want)
	}

	if got := p.SAN(want[1]); got != "a7xb8=R" {
		t.Errorf("SAN = %q, want a7xb8=R", got)
	}
	captured := mustApply(t, p, want[1])
	if captured != (Piece{Blue, Knight}) {
		t.Errorf("captured = %v, want blue knight", captured)
	}
	if got := p.PieceAt(SquareAt(0, 1)); got != (Piece{Red, Rook}) {
		t.Errorf("promoted piece = %v, want red rook", got)
	}
	if p.Score(Red) != 3 {
		t.Errorf("red score = %d, want 3", p.Score(Red))
	}
	if err := p.UndoLastMove(); err != nil {
		t.Fatal(err)
	}
	if got := p.PieceAt(SquareAt(1, 0)); got != (Piece{Red, Pawn}) {
		t.Errorf("after undo = %v, want red pawn", got)
	}
	if p.Score(Red) != 0 {
		t.Errorf("red score after undo = %d", p.Score(Red))
	}
}

func TestCaptureValues(t *testing.T) {
	tests := []struct {
		name       string
		victim     Piece
		victimLive bool
		want       int
	}{
		{"pawn", Piece{Blue, Pawn}, true, 1},
		{"knight", Piece{Blue, Knight}, true, 3},
		{"bishop", Piece{Blue, Bishop}, true, 5},
		{"rook", Piece{Blue, Rook}, true, 5},
		{"king", Piece{Blue, King}, true, 3},
		{"dead pawn", Piece{Blue, Pawn}, false, 0},
		{"dead rook", Piece{Blue, Rook}, false, 0},
		{"dead king", Piece{Blue, King}, false, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewEmptyPosition(Red)
			mustPlace(t, p, Red, Rook, SquareAt(4, 0))
			mustPlace(t, p, tt.victim.Player, tt.victim.Type, SquareAt(4, 4))
			if !tt.victimLive {
				if err := p.SetActive(Blue, false); err != nil {
					t.Fatal(err)
				}
			}
			mustApply(t, p, Move{From: SquareAt(4, 0), To: SquareAt(4, 4)})
			if got := p.Score(Red); got != tt.want {
				t.Errorf("score = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestKingCaptureElimination(t *testing.T) {
	p := NewEmptyPosition(Red)
	mustPlace(t, p, Red, Rook, SquareAt(0, 0))
	mustPlace(t, p, Red, King, SquareAt(7, 7))
	mustPlace(t, p, Blue, King, SquareAt(0, 3))
	mustPlace(t, p, Yellow, King, SquareAt(4, 4))
	mustPlace(t, p, Green, King, SquareAt(4, 6))
	for _, pl := range []Player{Yellow, Green} {
		if err := p.SetActive(pl, false); err != nil {
			t.Fatal(err)
		}
	}
	before := takeSnapshot(p)

	mustApply(t, p, mustUCI(t, "a8d8"))
	if !p.IsTerminal() || p.Termination() != Elimination {
		t.Fatalf("termination = %v, want elimination", p.Termination())
	}
	if p.IsActive(Blue) || p.NumActive() != 1 {
		t.Errorf("blue still active after king capture")
	}
	res := p.Result()
	if res[Red] != 3+3*2 {
		t.Errorf("red result = %d, want 9", res[Red])
	}
	if p.Winner() != Red {
		t.Errorf("winner = %s, want red", p.Winner())
	}

	if err := p.UndoLastMove(); err != nil {
		t.Fatal(err)
	}
	if !takeSnapshot(p).equal(before) {
		t.Errorf("undo did not restore the eliminated player")
	}
}

func TestDrawBonusWithDeadKings(t *testing.T) {
	p := NewEmptyPosition(Red)
	mustPlace(t, p, Red, King, SquareAt(7, 0))
	mustPlace(t, p, Blue, King, SquareAt(0, 0))
	mustPlace(t, p, Yellow, King, SquareAt(0, 7))
	mustPlace(t, p, Green, King, SquareAt(7, 7))
	if err := p.SetActive(Green, false); err != nil {
		t.Fatal(err)
	}
	p.termination = Repetition
	res := p.Result()
	want := [NumPlayers]int{3, 3, 3, 0}
	if res != want {
		t.Errorf("Result() = %v, want %v", res, want)
	}
}

func TestResign(t *testing.T) {
	p := NewPosition()
	before := takeSnapshot(p)
	if err := p.Resign(Blue); err == nil {
		t.Fatal("blue resigned out of turn")
	}
	if err := p.Resign(Red); err != nil {
		t.Fatal(err)
	}
	if err := p.Validate(); err != nil {
		t.Fatal(err)
	}
	if p.IsActive(Red) || p.SideToMove() != Blue {
		t.Fatalf("after resign: red active=%v side=%s", p.IsActive(Red), p.SideToMove())
	}
	if moves := p.LegalMoveCandidates(Red); moves != nil {
		t.Errorf("resigned player has %d moves", len(moves))
	}
	if err := p.Resign(Red); !errors.Is(err, ErrInactivePlayer) {
		t.Errorf("second resign err = %v, want ErrInactivePlayer", err)
	}

	for _, pl := range []Player{Blue, Yellow} {
		if err := p.Resign(pl); err != nil {
			t.Fatal(err)
		}
	}
	if err := p.Validate(); err != nil {
		t.Fatal(err)
	}
	if !p.IsTerminal() || p.Termination() != Elimination {
		t.Fatalf("termination = %v, want elimination", p.Termination())
	}
	if res := p.Result(); res[Green] != 9 {
		t.Errorf("green result = %d, want 9", res[Green])
	}

	for i := 0; i < 3; i++ {
		if err := p.UndoLastMove(); err != nil {
			t.Fatal(err)
		}
	}
	if !takeSnapshot(p).equal(before) {
		t.Errorf("undoing resignations did not restore the start")
	}
}

func TestChildKeepsHistory(t *testing.T) {
	p := NewPosition()
	mustApply(t, p, mustUCI(t, "b1c3"))
	c, err := p.Child(mustUCI(t, "a7c6"))
	if err != nil {
		t.Fatal(err)
	}
	if len(c.History()) != 3 || len(p.History()) != 2 {
		t.Errorf("history lengths child=%d parent=%d, want 3 and 2", len(c.History()), len(p.History()))
	}
	if c.UndoDepth() != 1 {
		t.Errorf("child undo depth = %d, want 1", c.UndoDepth())
	}
	if p.SideToMove() != Blue || c.SideToMove() != Yellow {
		t.Errorf("sides parent=%s child=%s", p.SideToMove(), c.SideToMove())
	}

	cl := p.Clone()
	if err := cl.UndoLastMove(); err != nil {
		t.Fatal(err)
	}
	if p.UndoDepth() != 1 {
		t.Errorf("undo on clone changed the original")
	}
}

func TestRankRewards(t *testing.T) {
	tests := []struct {
		name   string
		scores [NumPlayers]int
		want   [NumPlayers]float64
	}{
		{"distinct", [NumPlayers]int{4, 9, 1, 0}, [NumPlayers]float64{0.25, 1, -0.25, -1}},
		{"middle tie", [NumPlayers]int{10, 5, 5, 0}, [NumPlayers]float64{1, 0, 0, -1}},
		{"bottom tie", [NumPlayers]int{3, 9, 1, 1}, [NumPlayers]float64{0.25, 1, -0.625, -0.625}},
		{"all equal", [NumPlayers]int{2, 2, 2, 2}, [NumPlayers]float64{0, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RankRewards(tt.scores); got != tt.want {
				t.Errorf("RankRewards(%v) = %v, want %v", tt.scores, got, tt.want)
			}
		})
	}
}

func TestMoveFormats(t *testing.T) {
	p := NewPosition()
	tests := []struct {
		uci    string
		san    string
		policy int
	}{
		{"b1c3", "Nb1c3", 57*64 + 42},
		{"a2a3", "a2a3", 48*64 + 40},
		{"d1e2", "Kd1e2", 59*64 + 52},
	}
	for _, tt := range tests {
		t.Run(tt.uci, func(t *testing.T) {
			m := mustUCI(t, tt.uci)
			if m.UCI() != tt.uci {
				t.Errorf("UCI() = %q", m.UCI())
			}
			if got := p.SAN(m); got != tt.san {
				t.Errorf("SAN = %q, want %q", got, tt.san)
			}
			if got := m.PolicyIndex(); got != tt.policy {
				t.Errorf("PolicyIndex = %d, want %d", got, tt.policy)
			}
			back, err := MoveFromPolicyIndex(tt.policy)
			if err != nil || back != m {
				t.Errorf("MoveFromPolicyIndex(%d) = %v, %v", tt.policy, back, err)
			}
		})
	}

	promo := Move{From: SquareAt(1, 3), To: SquareAt(0, 3), Promotion: Rook}
	if promo.UCI() != "d7d8r" {
		t.Errorf("promotion UCI = %q", promo.UCI())
	}
	if back, _ := ParseUCI("d7d8r"); back != promo {
		t.Errorf("ParseUCI(d7d8r) = %v", back)
	}
	for _, bad := range []string{"", "a9a1", "i1a1", "a1a2q", "a1"} {
		if _, err := ParseUCI(bad); err == nil {
			t.Errorf("ParseUCI(%q) succeeded", bad)
		}
	}
	if _, err := MoveFromPolicyIndex(PolicySize); err == nil {
		t.Error("MoveFromPolicyIndex accepted 4096")
	}
}

func TestEncode(t *testing.T) {
	p := NewPosition()
	mustApply(t, p, mustUCI(t, "a2a3"))
	enc := p.EncodeNew()
	if len(enc) != EncodedSize || NumPlanes != 33 {
		t.Fatalf("len = %d planes = %d", len(enc), NumPlanes)
	}
	at := func(plane int, sq string) float32 {
		s, _ := ParseSquare(sq)
		return enc[plane*NumSquares+int(s)]
	}
	tests := []struct {
		name  string
		plane int
		sq    string
		want  float32
	}{
		{"red pawn moved", int(Red)*NumPieceTypes + int(Pawn-1), "a3", 1},
		{"red pawn origin empty", int(Red)*NumPieceTypes + int(Pawn-1), "a2", 0},
		{"red king", int(Red)*NumPieceTypes + int(King-1), "d1", 1},
		{"green king", int(Green)*NumPieceTypes + int(King-1), "h4", 1},
		{"yellow active", activePlane + int(Yellow), "e4", 1},
		{"blue to move", sidePlane + int(Blue), "a1", 1},
		{"red not to move", sidePlane + int(Red), "a1", 0},
		{"red points", scorePlane + int(Red), "c5", 0},
		{"progress", progressPlane, "h8", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := at(tt.plane, tt.sq); got != tt.want {
				t.Errorf("plane %d %s = %v, want %v", tt.plane, tt.sq, got, tt.want)
			}
		})
	}
}

func TestAttacksBy(t *testing.T) {
	p := NewPosition()
	att := p.AttacksBy(Red)
	for _, sq := range []string{"a3", "c3", "e1", "e2", "b3"} {
		s, _ := ParseSquare(sq)
		if !att.Has(s) {
			t.Errorf("red should attack %s", sq)
		}
	}
	if s, _ := ParseSquare("a4"); att.Has(s) {
		t.Errorf("red should not attack a4")
	}
}

func TestEvaluateStart(t *testing.T) {
	got := NewPosition().Evaluate()
	for pl := Blue; pl < NumPlayers; pl++ {
		if math.Abs(got[pl]-got[Red]) > 1e-9 {
			t.Errorf("start evaluation not symmetric: %v", got)
		}
	}
}

func TestZobristDeterministic(t *testing.T) {
	a, b := NewMT(ZobristSeed), NewMT(ZobristSeed)
	for i := 0; i < 16; i++ {
		if x, y := a.Uint64(), b.Uint64(); x != y {
			t.Fatalf("draw %d: %#x != %#x", i, x, y)
		}
	}
	if NewPosition().Hash() != NewPosition().Hash() {
		t.Error("start position hash differs between positions")
	}
	p := NewPosition()
	start := p.Hash()
	mustApply(t, p, p.SideMoves()[0])
	if p.Hash() == start {
		t.Error("hash unchanged after a move")
	}
}

func TestSetActive(t *testing.T) {
	tests := []struct {
		name    string
		pl      Player
		active  bool
		wantErr bool
	}{
		{"eliminate blue", Blue, false, false},
		{"reactivate red", Red, true, false},
		{"negative player", Player(-2), false, true},
		{"player past green", Player(NumPlayers), false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPosition()
			err := p.SetActive(tt.pl, tt.active)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SetActive(%d, %v) err = %v, wantErr %v", tt.pl, tt.active, err, tt.wantErr)
			}
			if err == nil && p.IsActive(tt.pl) != tt.active {
				t.Errorf("IsActive(%s) = %v, want %v", tt.pl, p.IsActive(tt.pl), tt.active)
			}
		})
	}

	p := NewPosition()
	mustApply(t, p, p.SideMoves()[0])
	if err := p.SetActive(Blue, false); err == nil {
		t.Error("SetActive accepted after a move")
	}
}
