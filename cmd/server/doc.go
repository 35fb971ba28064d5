// Command server runs the appdock library view service.
package main
