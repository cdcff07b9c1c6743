package tg

// Callbacks buttons uniques, the symbol travels in the callback data
const (
	BuyCallback     string = "buy"
	SellCallback    string = "sell"
	RefreshCallback string = "refresh_portfolio"
)
