package config

import "github.com/jangala-dev/tinybms-gateway/types"

// maxTopicLen is §6's "Max topic length 96 bytes".
const maxTopicLen = 96

// defaultTopics derives the fixed-template MQTT topic set for a device
// name (§6 "MQTT topics").
func defaultTopics(device string) types.MQTTTopicsConfig {
	return types.MQTTTopicsConfig{
		Status:     device + "/status",
		Metrics:    device + "/metrics",
		Config:     device + "/config",
		CanRaw:     device + "/can/raw",
		CanDecoded: device + "/can/decoded",
		CanReady:   device + "/can/ready",
	}
}

// rewriteTopicsOnRename implements §4.10's "when the device name
// changes, MQTT topics that still match the defaults for the old name
// are rewritten to the defaults for the new name; custom topics are
// preserved": any topic still equal to its old-name default is
// replaced by the new-name default, field by field.
func rewriteTopicsOnRename(topics types.MQTTTopicsConfig, oldName, newName string) types.MQTTTopicsConfig {
	if oldName == newName {
		return topics
	}
	oldDefaults := defaultTopics(oldName)
	newDefaults := defaultTopics(newName)

	rewrite := func(current, oldDefault, newDefault string) string {
		if current == oldDefault {
			return newDefault
		}
		return current
	}

	return types.MQTTTopicsConfig{
		Status:     rewrite(topics.Status, oldDefaults.Status, newDefaults.Status),
		Metrics:    rewrite(topics.Metrics, oldDefaults.Metrics, newDefaults.Metrics),
		Config:     rewrite(topics.Config, oldDefaults.Config, newDefaults.Config),
		CanRaw:     rewrite(topics.CanRaw, oldDefaults.CanRaw, newDefaults.CanRaw),
		CanDecoded: rewrite(topics.CanDecoded, oldDefaults.CanDecoded, newDefaults.CanDecoded),
		CanReady:   rewrite(topics.CanReady, oldDefaults.CanReady, newDefaults.CanReady),
	}
}
