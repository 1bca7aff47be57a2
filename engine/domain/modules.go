package domain

import "strings"

// GeneralChapter is the classification for pages outside the four modules.
const GeneralChapter = "General"

// CourseModule maps a docs path marker to its chapter label.
type CourseModule struct {
	Marker  string
	Chapter string
	Topic   string
}

// CourseModules is the fixed set of course modules, in teaching order.
var CourseModules = []CourseModule{
	{Marker: "module-01-ros2", Chapter: "Module 1: ROS 2", Topic: "ROS 2 (Robot Operating System 2): nodes, topics, services, actions, URDF"},
	{Marker: "module-02-simulation", Chapter: "Module 2: Simulation", Topic: "Gazebo & Unity: physics simulation, sensor simulation, digital twins"},
	{Marker: "module-03-isaac", Chapter: "Module 3: NVIDIA Isaac", Topic: "NVIDIA Isaac: Isaac Sim, Isaac ROS, VSLAM, navigation, Nav2"},
	{Marker: "module-04-vla", Chapter: "Module 4: VLA Systems", Topic: "Vision-Language-Action: voice commands, LLM planning, Whisper, GPT-4"},
}

// ClassifyPath returns the chapter for a document path by marker substring.
// Unmatched paths are GeneralChapter.
func ClassifyPath(path string) string {
	p := strings.ReplaceAll(path, "\\", "/")
	for _, m := range CourseModules {
		if strings.Contains(p, m.Marker) {
			return m.Chapter
		}
	}
	return GeneralChapter
}
