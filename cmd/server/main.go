// Command go-mockapi serves a mock of the API described by an OpenAPI 3
// or Swagger 2.0 document.
package main

func main() {
	Execute()
}
