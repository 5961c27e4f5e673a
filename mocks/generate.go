package mocks

//go:generate mockgen -destination=./mock_feed.go -package=mocks github.com/rxtech-lab/algoscript/internal/marketdata Feed
//go:generate mockgen -destination=./mock_order_placer.go -package=mocks github.com/rxtech-lab/algoscript/internal/exchange OrderPlacer
