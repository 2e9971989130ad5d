package core

// RifleProfile is the ballistic description of a rifle/load combination.
type RifleProfile struct {
	Name              string  `json:"name"`
	ZeroYards         float64 `json:"zero_yards"`
	MuzzleVelocityFPS float64 `json:"muzzle_velocity_fps"`
}

// Rifle is a stored RifleProfile with its identifier.
type Rifle struct {
	ID string `json:"id"`
	RifleProfile
}
