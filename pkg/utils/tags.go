package utils

import "github.com/aws/aws-sdk-go-v2/service/ec2/types"

// TagsToMap converts EC2 API tags to a plain map. Tags with a nil key
// are dropped; a nil value becomes the empty string.
func TagsToMap(tags []types.Tag) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	result := make(map[string]string, len(tags))
	for _, tag := range tags {
		if tag.Key == nil {
			continue
		}
		value := ""
		if tag.Value != nil {
			value = *tag.Value
		}
		result[*tag.Key] = value
	}
	return result
}

// GetName returns the value of the Name tag, or "" when absent.
func GetName(tags map[string]string) string {
	return tags["Name"]
}
