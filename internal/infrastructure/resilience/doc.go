/*
Package resilience provides a circuit breaker for relay reconnection.

# Overview

When the compensation controller is down, every reconnect attempt costs a
connect timeout. The breaker stops attempting after a run of failures and
allows a trial attempt once its open period has elapsed.

# Usage

	breaker := resilience.New("relay", resilience.Settings{
		Timeout: 2 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Info("Breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})

	err := breaker.Execute(func() error {
		return client.Connect(ctx)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                       [failure]
	                                           v
	                                          Open
*/
package resilience
