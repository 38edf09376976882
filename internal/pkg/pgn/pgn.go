package pgn

import (
	"strings"
	"sync"
	"unicode"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
)

// Analysis is what the importer derives from a game transcript.
type Analysis struct {
	Plies   int
	ECO     string
	Opening string
}

var ecoBook = sync.OnceValue(func() *opening.BookECO {
	return opening.NewBookECO()
})

// Analyze counts the half moves of a PGN and looks up its ECO classification.
// It never fails; anything it cannot read yields zero values.
func Analyze(pgn string) Analysis {
	headers, moves := Split(pgn)
	a := Analysis{Plies: len(moves)}
	if len(moves) == 0 || !isStandardStart(headers) {
		return a
	}

	game := nchess.NewGame()
	for _, san := range moves {
		if err := pushSAN(game, san); err != nil {
			break
		}
	}
	if len(game.Moves()) == 0 {
		return a
	}

	book := ecoBook()
	if book == nil {
		return a
	}
	if eco := book.Find(game.Moves()); eco != nil {
		a.ECO = eco.Code()
		a.Opening = eco.Title()
	}
	return a
}

// Split separates the tag pairs from the SAN tokens of the main line.
// Comments, variations, NAGs, move numbers and the result marker are dropped.
func Split(pgn string) (map[string]string, []string) {
	headers := make(map[string]string)
	var movetext strings.Builder
	for _, line := range strings.Split(pgn, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			if key, value, ok := parseTag(line); ok {
				headers[key] = value
			}
			continue
		}
		if i := strings.IndexByte(line, ';'); i >= 0 {
			line = line[:i]
		}
		movetext.WriteString(line)
		movetext.WriteByte(' ')
	}
	return headers, tokenize(movetext.String())
}

func parseTag(line string) (string, string, bool) {
	inner := strings.TrimSuffix(strings.TrimPrefix(line, "["), "]")
	key, rest, ok := strings.Cut(inner, " ")
	if !ok {
		return "", "", false
	}
	return key, strings.Trim(strings.TrimSpace(rest), `"`), true
}

func tokenize(text string) []string {
	var (
		moves     []string
		current   strings.Builder
		comment   bool
		variation int
	)
	flush := func() {
		if current.Len() == 0 {
			return
		}
		if tok := cleanToken(current.String()); tok != "" {
			moves = append(moves, tok)
		}
		current.Reset()
	}

	for _, r := range text {
		switch {
		case comment:
			if r == '}' {
				comment = false
			}
		case r == '{':
			flush()
			comment = true
		case r == '(':
			flush()
			variation++
		case r == ')':
			if variation > 0 {
				variation--
			}
		case variation > 0:
		case unicode.IsSpace(r):
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return moves
}

func cleanToken(tok string) string {
	// "12." and "12..." prefixes, possibly glued to the move
	if i := strings.LastIndex(tok, "."); i >= 0 {
		tok = tok[i+1:]
	}
	tok = strings.TrimRight(tok, "!?")
	switch {
	case tok == "":
		return ""
	case tok == "*", tok == "1-0", tok == "0-1", tok == "1/2-1/2":
		return ""
	case strings.HasPrefix(tok, "$"):
		return ""
	}
	return tok
}

func isStandardStart(headers map[string]string) bool {
	if _, ok := headers["FEN"]; ok {
		return false
	}
	variant, ok := headers["Variant"]
	return !ok || strings.EqualFold(variant, "Standard")
}

func pushSAN(game *nchess.Game, san string) error {
	err := game.PushNotationMove(san, nchess.AlgebraicNotation{}, nil)
	if err == nil {
		return nil
	}
	if trimmed := strings.TrimRight(san, "+#"); trimmed != san {
		return game.PushNotationMove(trimmed, nchess.AlgebraicNotation{}, nil)
	}
	return err
}
