package hub

import "time"

// relayChannelPattern matches every showtime relay channel.
const relayChannelPattern = "showtime:*"

// redisPublishTimeout bounds how long a relay publish may hold up the
// store's notifier path.
const redisPublishTimeout = 2 * time.Second

// relayChannel names the Redis pub/sub channel carrying deltas for one
// showtime.
func relayChannel(showtimeID string) string {
	return "showtime:" + showtimeID
}
