package okx

// controlFrame is a subscribe/unsubscribe request.
type controlFrame struct {
	Op   string       `json:"op"`
	Args []channelArg `json:"args"`
}

type channelArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

// tickerFrame is a push on the tickers channel. Prices arrive as strings.
type tickerFrame struct {
	Arg  channelArg `json:"arg"`
	Data []struct {
		InstID string `json:"instId"`
		Last   string `json:"last"`
	} `json:"data"`
}
