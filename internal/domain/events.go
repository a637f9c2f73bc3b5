package domain

import "fmt"

const LockerCmdOpen = "open"

// LockerCommand is published to the per-locker command channel.
type LockerCommand struct {
	Cmd      string      `json:"cmd"`
	OrderID  string      `json:"orderId"`
	LockerID string      `json:"-"`
	Products []OrderItem `json:"products"`
	Ts       int64       `json:"ts"`
}

// LockerTopic is the MQTT topic the locker firmware subscribes to.
func LockerTopic(lockerID string) string {
	return fmt.Sprintf("locker/%s/commands", lockerID)
}
