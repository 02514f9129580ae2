package example

import "os"

type Config struct {
	Name   string
	Secret string
}

func literal() string {
	x := "hunter2"
	return x
}

func assign(y string) string {
	var x string
	x = y
	return x
}

func env() string {
	return os.Getenv("HOME")
}

func build(name string) Config {
	return Config{Name: name, Secret: "s3cr3t"}
}

func Identity[T any](v T) T { return v }

func generic() string {
	return Identity("lit")
}

func ternary(a, b string, ok bool) string {
	s := a + b
	if ok {
		s = "fixed"
	}
	return s
}

type Box[T any] struct {
	value T
}

func (b *Box[T]) Get() T { return b.value }

func unbox() string {
	b := &Box[string]{value: "boxed"}
	return b.Get()
}

func send(ch chan string, values []string) {
	for _, v := range values {
		ch <- v
	}
}

type Pair[K, V any] struct {
	Key K
	Val V
}

func read() string {
	p := Pair[string, int]{Key: "a", Val: 1}
	return p.Key
}
