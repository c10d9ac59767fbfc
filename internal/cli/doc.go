// Package cli — команды инструмента командной строки atomika.
package cli
