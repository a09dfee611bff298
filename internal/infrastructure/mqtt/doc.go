// Package mqtt is the runtime's connection to the MQTT broker, which
// carries the command and state bus:
//
//	Controller ↔ MQTT broker ↔ gpioremote ↔ WebSocket ↔ GPIO device servers
//
// Controllers publish raw commands to gpioremote/command/<item> and read
// retained values from gpioremote/state/<item>. The runtime answers each
// command on gpioremote/ack/<item> and reports device connectivity on
// gpioremote/health/<bridge>.
//
// The client also keeps the runtime's presence on
// gpioremote/system/status: "online" on every (re)connect, "offline" with
// reason "shutdown" on Close, and "offline" with reason
// "connection_lost" as the will the broker publishes if the process
// vanishes.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Bridge.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        item, _ := mqtt.ItemFromTopic(topic)
//	        return handle(item, payload)
//	    })
package mqtt
