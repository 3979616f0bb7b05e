package main

// Game configuration constants
const (
	// Server
	DefaultAddr = ":8765"

	// Map: square cell grid, coordinates 0..MapWidth-1 / 0..MapHeight-1
	MapWidth  = 50
	MapHeight = 50

	// Rooms
	RoomCount    = 20
	RoomCapacity = 10
	MaxPlayers   = RoomCount * RoomCapacity
	MaxHumans    = 4 // humans per room
	BotsPerRoom  = 2 // resident bots; all but one start benched

	// Game loop
	TickRate = 15 // simulation ticks per second

	// Auto-start
	MinPlayersToStart = 2
	CountdownSec      = 5

	// Snake
	SpawnLength   = 3
	SpawnMargin   = 2 // cells kept clear of the map edge on spawn
	SpawnAttempts = 100

	// Food
	FoodTarget        = 3
	FoodSpawnAttempts = 100

	// Heartbeat
	PingIntervalSec = 20
	PongTimeoutSec  = 60

	// Fan-out: outbound messages buffered per connection before the
	// connection is declared dead. The tick loop never waits on a socket.
	SendQueueSize = 64

	// Limits
	MaxNameLength = 10
)

// Policy network dimensions: must match the exported training weights.
const (
	PolicyInputSize  = 20
	PolicyHiddenSize = 128
	PolicyOutputSize = 3
)
