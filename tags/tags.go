package tags

import "github.com/yohamta/donburi"

var (
	Human = donburi.NewTag().SetName("Human")
)
