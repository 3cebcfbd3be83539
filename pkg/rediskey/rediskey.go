package rediskey

import "fmt"

const (
	PointsPrefix       = "points"
	PointsConfigPrefix = "points:config"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildPointsConfigKey returns "points:config:{churchID}"
func BuildPointsConfigKey(churchID string) string {
	return NamespaceKey(PointsConfigPrefix, churchID)
}
