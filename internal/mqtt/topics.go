package mqtt

import "fmt"

func TopicCommand(prefix string) string {
	return fmt.Sprintf("%s/console/command", prefix)
}

func TopicStatus(prefix, requestID string) string {
	return fmt.Sprintf("%s/console/status/%s", prefix, requestID)
}

func TopicPolicyUpdate(prefix string) string {
	return fmt.Sprintf("%s/policy/update", prefix)
}
