package lichess

// RawGame is one line of the NDJSON game export. Only the fields the importer
// reads are decoded; absent nested objects stay nil.
type RawGame struct {
	ID        string   `json:"id"`
	Rated     bool     `json:"rated"`
	Variant   string   `json:"variant"`
	Speed     string   `json:"speed"`
	Perf      string   `json:"perf"`
	Status    string   `json:"status"`
	Winner    string   `json:"winner"`
	CreatedAt *int64   `json:"createdAt"`
	LastMove  *int64   `json:"lastMoveAt"`
	Players   *Players `json:"players"`
	Opening   *Opening `json:"opening"`
	PGN       *string  `json:"pgn"`
}

type Players struct {
	White *Player `json:"white"`
	Black *Player `json:"black"`
}

type Player struct {
	User   *PlayerUser `json:"user"`
	Rating int         `json:"rating"`
}

type PlayerUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Opening struct {
	ECO  string `json:"eco"`
	Name string `json:"name"`
	Ply  int    `json:"ply"`
}

// Account is the subset of /api/account the backend uses.
type Account struct {
	ID        string          `json:"id"`
	Username  string          `json:"username"`
	CreatedAt int64           `json:"createdAt"`
	SeenAt    int64           `json:"seenAt"`
	Perfs     map[string]Perf `json:"perfs"`
	Count     map[string]int  `json:"count"`
	URL       string          `json:"url"`
}

// Perf is one rating category. Puzzle modes like storm carry no rating.
type Perf struct {
	Games  int  `json:"games"`
	Rating *int `json:"rating"`
	RD     int  `json:"rd"`
	Prog   int  `json:"prog"`
	Prov   bool `json:"prov"`
}

// Ratings returns the rating of every category that has one.
func (a *Account) Ratings() map[string]int {
	out := make(map[string]int, len(a.Perfs))
	for mode, p := range a.Perfs {
		if p.Rating != nil {
			out[mode] = *p.Rating
		}
	}
	return out
}

// GameQuery selects a page of the export. Zero values are omitted from the request.
type GameQuery struct {
	Max      int
	Until    int64 // ms epoch, 0 means newest
	Since    int64 // ms epoch
	PerfType string
}
