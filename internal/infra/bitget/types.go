package bitget

const (
	Source        = "BITGET"
	DefaultWSURL  = "wss://ws.bitget.com/v2/ws/public"
	tickerChannel = "ticker"
	instTypeSpot  = "SPOT"
)

type subscribeRequest struct {
	Op   string         `json:"op"`
	Args []subscribeArg `json:"args"`
}

type subscribeArg struct {
	InstType string `json:"instType"`
	Channel  string `json:"channel"`
	InstID   string `json:"instId"`
}

// tickerResponse is a push frame of the spot ticker channel.
type tickerResponse struct {
	Action string       `json:"action"`
	Arg    subscribeArg `json:"arg"`
	Data   []tickerData `json:"data"`
	Ts     int64        `json:"ts"`
}

type tickerData struct {
	InstID     string `json:"instId"`
	LastPr     string `json:"lastPr"`
	BaseVolume string `json:"baseVolume"`
}
