// Command taskmesh runs a task through a mesh of workers described by a
// YAML configuration file.
package main

func main() {
	Execute()
}
